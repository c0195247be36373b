package vcf

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/variantconvert/internal/transform"
)

func writeConverted(t *testing.T) []byte {
	t.Helper()
	cfg, tbl, extra := loadFixture(t, tsvMapping, testTSV)
	a, err := NewAssembler(cfg, names(extra), &transform.Env{Genome: fakeGenome{}})
	require.NoError(t, err)
	h, err := (&HeaderBuilder{Config: cfg, InputPath: "in.tsv", ExtraColumns: extra, Sample: "S1"}).Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(h))
	for _, row := range tbl.Rows {
		rec, err := a.Assemble(row)
		require.NoError(t, err)
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, 3, w.Records())
	return buf.Bytes()
}

func TestReader_RoundTrip(t *testing.T) {
	r, err := NewReaderFromReader(bytes.NewReader(writeConverted(t)))
	require.NoError(t, err)

	assert.Equal(t, []string{"S1"}, r.Header().Samples)

	rec, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "chr1", rec.Chrom)
	assert.Equal(t, int64(1000), rec.Pos)
	assert.True(t, rec.IsSNV())
	gene, ok := rec.InfoValue("gene")
	require.True(t, ok)
	assert.Equal(t, "BRCA2", gene)
	vaf, ok := rec.SampleValue("VAF")
	require.True(t, ok)
	assert.Equal(t, "0.45", vaf)

	count := 1
	for {
		rec, err := r.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		count++
	}
	assert.Equal(t, 3, count)
}

func TestValidate_Converted(t *testing.T) {
	r, err := NewReaderFromReader(bytes.NewReader(writeConverted(t)))
	require.NoError(t, err)

	report, err := Validate(r)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Records)
	assert.True(t, report.OK(), "%+v", report.Problems)
}

func TestValidate_Problems(t *testing.T) {
	input := strings.Join([]string{
		"##fileformat=VCFv4.3",
		`##INFO=<ID=gene,Number=1,Type=String,Description="g">`,
		`##INFO=<ID=unused,Number=1,Type=String,Description="u">`,
		`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
		`##FORMAT=<ID=DP,Number=1,Type=Integer,Description="d">`,
		`##FORMAT=<ID=AD,Number=R,Type=Integer,Description="a">`,
		`##FORMAT=<ID=VAF,Number=1,Type=Float,Description="v">`,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1",
		"chr1\t10\t.\ta\t-\t.\tPASS\tgene=x;other=“y”\tGT:DP:AD:VAF\t0/1:40:10,10:45",
		"chr1\t20\t.\tA\t<DEL>\t.\tPASS\tgene=x\tGT:DP:AD:VAF\t0/1:40.5:30,10:0.25",
	}, "\n") + "\n"

	r, err := NewReaderFromReader(strings.NewReader(input))
	require.NoError(t, err)
	report, err := Validate(r)
	require.NoError(t, err)
	assert.False(t, report.OK())

	fields := map[string]int{}
	for _, p := range report.Problems {
		fields[p.Field]++
	}
	assert.Equal(t, 1, fields["REF"])
	assert.Equal(t, 2, fields["ALT"])
	assert.Equal(t, 3, fields["INFO"])
	assert.Equal(t, 1, fields["AD"])
	assert.Equal(t, 1, fields["VAF"])
	assert.Equal(t, 1, fields["DP"])

	var out bytes.Buffer
	require.NoError(t, report.Write(&out))
	assert.Contains(t, out.String(), "unused is declared but never used")
	assert.Contains(t, out.String(), "Records:   2")
}

func TestNewReader_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.vcf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write(writeConverted(t))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	report, err := Validate(r)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Records)
}

func TestNewReader_Errors(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.vcf"))
	assert.Error(t, err)

	_, err = NewReaderFromReader(strings.NewReader("##fileformat=VCFv4.3\nchr1\t1\n"))
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)

	r, err := NewReaderFromReader(strings.NewReader("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\nchr1\tx\t.\tA\tG\t.\tPASS\t.\n"))
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorAs(t, err, &pe)
}
