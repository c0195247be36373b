package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/variantconvert/internal/coords"
	"github.com/inodb/variantconvert/internal/genome"
	"github.com/inodb/variantconvert/internal/mapping"
	"github.com/inodb/variantconvert/internal/table"
	"github.com/inodb/variantconvert/internal/transform"
	"github.com/inodb/variantconvert/internal/vcf"
)

const tsvMapping = `
GENERAL:
  origin: LabPipeline
  filename_ends: [".final.tsv"]
VCF_COLUMNS:
  "#CHROM": chr
  POS: [HELPER_FUNCTION, get_pos, start, ref, alt]
  ID: rsId
  REF: [HELPER_FUNCTION, get_ref_from_tsv, chr, start, ref, alt]
  ALT: [HELPER_FUNCTION, get_alt_from_tsv, chr, start, ref, alt]
  FORMAT:
    GT: zygosity
    DP: totalReadDepth
    AD: varReadDepth
    VAF: varReadPercent
COLUMNS_DESCRIPTION:
  COLUMNS:
    gene: Gene symbol
GENOME:
  vcf_header: ["##reference=test"]
`

const tsvInput = "chr\tstart\tref\talt\trsId\tzygosity\ttotalReadDepth\tvarReadDepth\tvarReadPercent\tgene\n" +
	"chr10\t500\tC\tT\trs3\tHet\t10\t5\t50\tPTEN\n" +
	"chr1\t2000\tATG\t-\trs2\tHom\t30\t30\t100\tTP53\n" +
	"chr2\t700\tG\tA\t.\tHet\t20\t4\t20\tNA\n" +
	"chr1\t1000\tA\tG\trs1\tHet\t40\t18\t45\tBRCA2\n"

var fixedDate = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

// writeGenome writes a FASTA whose chr1 has C at 1999 and G at 2000.
func writeGenome(t *testing.T, dir string) string {
	t.Helper()
	seq := strings.Repeat("A", 1998) + "CG" + strings.Repeat("T", 100)
	var b strings.Builder
	b.WriteString(">chr1 test contig\n")
	for i := 0; i < len(seq); i += 60 {
		b.WriteString(seq[i:min(i+60, len(seq))])
		b.WriteByte('\n')
	}
	path := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func parseMapping(t *testing.T, yml string) *mapping.Config {
	t.Helper()
	cfg, err := mapping.Parse([]byte(yml))
	require.NoError(t, err)
	return cfg
}

func readLines(t *testing.T, path string) (header, records []string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			header = append(header, line)
		} else {
			records = append(records, line)
		}
	}
	return header, records
}

func convertFile(t *testing.T, format, yml, input string, opts ...Option) error {
	t.Helper()
	c, err := New(format, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Configure(parseMapping(t, yml)))
	return c.Convert(input, filepath.Join(filepath.Dir(input), "out.vcf"))
}

func TestSampleName(t *testing.T) {
	general := mapping.General{
		FilenameEnds: []string{".final.tsv", "_allVariants.rankingByVar.tsv"},
		FamilyPrefix: mapping.DefaultFamilyPrefix,
	}

	tests := []struct {
		path string
		want string
	}{
		{"fam12_PatientA.final.tsv", "PatientA"},
		{"/data/run1/fam3_P-07_allVariants.rankingByVar.tsv", "P-07"},
		{"PatientB.final.tsv", "PatientB"},
		{"famX_PatientC.final.tsv", "famX_PatientC"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := SampleName(tt.path, general)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, path := range []string{"fam12_PatientA.tsv", "fam1_.final.tsv"} {
		t.Run(path, func(t *testing.T) {
			_, err := SampleName(path, general)
			var sErr *UnresolvableSampleNameError
			require.ErrorAs(t, err, &sErr)
			assert.Equal(t, path, sErr.Path)
		})
	}
}

func TestNew(t *testing.T) {
	for _, f := range Formats() {
		c, err := New(f)
		require.NoError(t, err, f)
		assert.NotNil(t, c)
	}
	assert.Equal(t, []string{"annotsv", "canoes", "decon", "tsv", "varank"}, Formats())

	_, err := New("maf")
	assert.ErrorContains(t, err, `unknown input format "maf"`)

	c, err := New(FormatTSV)
	require.NoError(t, err)
	assert.ErrorContains(t, c.Convert("in.final.tsv", "out.vcf"), "Configure must be called")
}

func TestConfigure(t *testing.T) {
	t.Run("varank needs coordinates", func(t *testing.T) {
		c, err := New(FormatVarank)
		require.NoError(t, err)
		var cfgErr *mapping.ConfigError
		require.ErrorAs(t, c.Configure(parseMapping(t, tsvMapping)), &cfgErr)
		assert.Equal(t, "coordinates", cfgErr.Field)
	})

	t.Run("cnv formats need symbolic alt declarations", func(t *testing.T) {
		for _, f := range []string{FormatDecon, FormatCanoes} {
			c, err := New(f)
			require.NoError(t, err)
			var cfgErr *mapping.ConfigError
			require.ErrorAs(t, c.Configure(parseMapping(t, tsvMapping)), &cfgErr, f)
			assert.Equal(t, "COLUMNS_DESCRIPTION.ALT.DEL", cfgErr.Field)
		}
	})

	t.Run("invalid mapping", func(t *testing.T) {
		c, err := New(FormatTSV)
		require.NoError(t, err)
		cfg := parseMapping(t, tsvMapping)
		cfg.General.FilenameEnds = nil
		var cfgErr *mapping.ConfigError
		assert.ErrorAs(t, c.Configure(cfg), &cfgErr)
	})
}

func TestTableConverter_Convert(t *testing.T) {
	dir := t.TempDir()
	ref := writeGenome(t, dir)
	input := writeFile(t, dir, "fam12_PatientA.final.tsv", tsvInput)

	require.NoError(t, convertFile(t, FormatTSV, tsvMapping, input, WithGenome(ref), WithClock(fixedDate)))

	header, records := readLines(t, filepath.Join(dir, "out.vcf"))
	abs, err := filepath.Abs(input)
	require.NoError(t, err)

	assert.Equal(t, "##fileformat=VCFv4.3", header[0])
	assert.Equal(t, "##fileDate=20240315", header[1])
	assert.Equal(t, "##source=LabPipeline", header[2])
	assert.Equal(t, "##InputFile="+abs, header[3])
	assert.Contains(t, header, `##INFO=<ID=gene,Number=1,Type=String,Description="Gene symbol">`)
	assert.Contains(t, header, "##reference=test")
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tPatientA", header[len(header)-1])

	assert.Equal(t, []string{
		"chr1\t1000\trs1\tA\tG\t.\tPASS\tgene=BRCA2\tGT:DP:AD:VAF\t0/1:40:22,18:0.45",
		"chr1\t1999\trs2\tCATG\tC\t.\tPASS\tgene=TP53\tGT:DP:AD:VAF\t1/1:30:0,30:1",
		"chr2\t700\t.\tG\tA\t.\tPASS\tgene=.\tGT:DP:AD:VAF\t0/1:20:16,4:0.2",
		"chr10\t500\trs3\tC\tT\t.\tPASS\tgene=PTEN\tGT:DP:AD:VAF\t0/1:10:5,5:0.5",
	}, records)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file left behind: %s", e.Name())
	}
}

func TestTableConverter_GenomeFromMapping(t *testing.T) {
	dir := t.TempDir()
	ref := writeGenome(t, dir)
	input := writeFile(t, dir, "PatientA.final.tsv", tsvInput)

	yml := strings.Replace(tsvMapping, "GENOME:\n", "GENOME:\n  path: "+ref+"\n", 1)
	cache := genome.NewCache()
	defer cache.Close()
	require.NoError(t, convertFile(t, FormatTSV, yml, input, WithGenomeCache(cache)))

	_, records := readLines(t, filepath.Join(dir, "out.vcf"))
	assert.Len(t, records, 4)

	// the shared cache stays usable after the run
	g, err := cache.Open(ref)
	require.NoError(t, err)
	b, err := g.Base("chr1", 2000)
	require.NoError(t, err)
	assert.Equal(t, byte('G'), b)
}

func TestTableConverter_MissingGenome(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "PatientA.final.tsv", tsvInput)

	err := convertFile(t, FormatTSV, tsvMapping, input)
	var cfgErr *mapping.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GENOME.path", cfgErr.Field)
	assert.NoFileExists(t, filepath.Join(dir, "out.vcf"))
}

func TestTableConverter_WorkersKeepOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("chr\tstart\tref\talt\trsId\tzygosity\ttotalReadDepth\tvarReadDepth\tvarReadPercent\tgene\n")
	for i := 300; i > 0; i-- {
		fmt.Fprintf(&b, "chr%d\t%d\tA\tC\trs%d\tHet\t%d\t%d\t%d\tG%d\n", i%3+1, i*10, i, 50+i%7, i%7, i%100, i)
	}

	outputs := make([][]byte, 0, 2)
	for _, workers := range []int{1, 8} {
		dir := t.TempDir()
		ref := writeGenome(t, dir)
		input := writeFile(t, dir, "S1.final.tsv", b.String())
		require.NoError(t, convertFile(t, FormatTSV, tsvMapping, input,
			WithGenome(ref), WithClock(fixedDate), WithWorkers(workers)))

		_, records := readLines(t, filepath.Join(dir, "out.vcf"))
		require.Len(t, records, 300)
		assert.True(t, strings.HasPrefix(records[0], "chr1\t30\t"), records[0])
		assert.True(t, strings.HasPrefix(records[299], "chr3\t2990\t"), records[299])

		data := strings.Join(records, "\n")
		outputs = append(outputs, []byte(data))
	}
	assert.Equal(t, string(outputs[0]), string(outputs[1]))
}

func TestTableConverter_RowFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	ref := writeGenome(t, dir)
	input := writeFile(t, dir, "PatientA.final.tsv", tsvInput+"chr3\t10\tA\tG\t.\tHet\t10\t5\thigh\t.\n")
	out := filepath.Join(dir, "out.vcf")
	require.NoError(t, os.WriteFile(out, []byte("previous"), 0644))

	err := convertFile(t, FormatTSV, tsvMapping, input, WithGenome(ref), WithWorkers(4))
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 6, rowErr.Line)
	assert.Equal(t, "FORMAT/VAF", rowErr.Field)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestTableConverter_UnrepresentableAllele(t *testing.T) {
	dir := t.TempDir()
	ref := writeGenome(t, dir)
	input := writeFile(t, dir, "PatientA.final.tsv",
		"chr\tstart\tref\talt\trsId\tzygosity\ttotalReadDepth\tvarReadDepth\tvarReadPercent\tgene\n"+
			"chr1\t10\tAC\tGT\t.\tHet\t10\t5\t50\t.\n")

	err := convertFile(t, FormatTSV, tsvMapping, input, WithGenome(ref))
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Line)
	assert.Equal(t, "REF", rowErr.Field)
	var alleleErr *transform.UnrepresentableAlleleError
	assert.ErrorAs(t, err, &alleleErr)
}

func TestTableConverter_UnresolvableSample(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "PatientA.tsv", tsvInput)

	err := convertFile(t, FormatTSV, tsvMapping, input)
	var sErr *UnresolvableSampleNameError
	assert.ErrorAs(t, err, &sErr)
}

const deconMapping = `
GENERAL:
  origin: DECoN
  filename_ends: [".decon.tsv"]
VCF_COLUMNS:
  "#CHROM": Chromosome
  POS: Start
  REF: [HELPER_FUNCTION, get_ref_from_decon, Chromosome, Start]
  ALT: [HELPER_FUNCTION, get_alt_from_decon, CNV.type]
  INFO:
    SVLEN: [HELPER_FUNCTION, get_svlen_from_decon, Start, End]
COLUMNS_DESCRIPTION:
  ALT:
    DEL: Deletion relative to the reference
    DUP: Region of elevated copy number
  INFO:
    SVLEN:
      Type: Integer
      Description: Length of the structural variant
`

func TestTableConverter_Decon(t *testing.T) {
	dir := t.TempDir()
	ref := writeGenome(t, dir)
	input := writeFile(t, dir, "PatientA.decon.tsv",
		"Chromosome\tStart\tEnd\tCNV.type\tBF\n"+
			"chr1\t2000\t2100\tduplication\t3.5\n"+
			"chr1\t1999\t2050\tdeletion\t12.5\n")

	require.NoError(t, convertFile(t, FormatDecon, deconMapping, input, WithGenome(ref)))

	header, records := readLines(t, filepath.Join(dir, "out.vcf"))
	assert.Contains(t, header, `##ALT=<ID=DEL,Description="Deletion relative to the reference">`)
	assert.Contains(t, header, `##INFO=<ID=BF,Number=1,Type=Float,Description="Extracted from DECoN">`)
	assert.Contains(t, header, `##INFO=<ID=SVLEN,Number=1,Type=Integer,Description="Length of the structural variant">`)
	assert.Equal(t, []string{
		"chr1\t1999\t.\tC\t<DEL>\t.\tPASS\tBF=12.5;SVLEN=51\tGT:DP:AD:VAF\t.:.:.:.",
		"chr1\t2000\t.\tG\t<DUP>\t.\tPASS\tBF=3.5;SVLEN=100\tGT:DP:AD:VAF\t.:.:.:.",
	}, records)
}

func TestTableConverter_DeconUnknownLabel(t *testing.T) {
	dir := t.TempDir()
	ref := writeGenome(t, dir)
	input := writeFile(t, dir, "PatientA.decon.tsv",
		"Chromosome\tStart\tEnd\tCNV.type\tBF\n"+
			"chr1\t1999\t2050\tinversion\t12.5\n")

	err := convertFile(t, FormatDecon, deconMapping, input, WithGenome(ref))
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "ALT", rowErr.Field)
}

func TestTableConverter_DeconInfoCollision(t *testing.T) {
	dir := t.TempDir()
	ref := writeGenome(t, dir)
	input := writeFile(t, dir, "PatientA.decon.tsv",
		"Chromosome\tStart\tEnd\tCNV.type\tSVLEN\n"+
			"chr1\t1999\t2050\tdeletion\t51\n")

	err := convertFile(t, FormatDecon, deconMapping, input, WithGenome(ref))
	var ce *mapping.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "VCF_COLUMNS.INFO.SVLEN", ce.Field)
	assert.NoFileExists(t, filepath.Join(dir, "out.vcf"))
}

const varankMapping = `
GENERAL:
  origin: Varank
  skip_rows: 2
  filename_ends: ["_allVariants.rankingByVar.tsv"]
VCF_COLUMNS:
  FORMAT:
    GT: zygosity
    DP: totalReadDepth
    AD: varReadDepth
    VAF: varReadPercent
`

const varankInput = "## Varank export\n## generated for testing\n" +
	"variantID\tzygosity\ttotalReadDepth\tvarReadDepth\tvarReadPercent\tgene\n" +
	"var_2\thom\t12\t12\t100\tBRAF\n" +
	"var_1\tHet\t40\t18\t45\tBRCA2\n"

const varankCoordinates = "variantID\tchr\tpos\tref\talt\n" +
	"var_1\t1\t1000\tA\tG\n" +
	"var_2\tchr7\t140453136\ta\tt\n"

func TestVarankConverter_Convert(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "fam1_P1_allVariants.rankingByVar.tsv", varankInput)
	coordinates := writeFile(t, dir, "coordinates.tsv", varankCoordinates)

	require.NoError(t, convertFile(t, FormatVarank, varankMapping, input, WithCoordinates(coordinates)))

	header, records := readLines(t, filepath.Join(dir, "out.vcf"))
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tP1", header[len(header)-1])
	for _, line := range header {
		assert.NotContains(t, line, "ID=variantID")
	}
	assert.Equal(t, []string{
		"chr1\t1000\t.\tA\tG\t.\tPASS\tgene=BRCA2\tGT:DP:AD:VAF\t0/1:40:22,18:0.45",
		"chr7\t140453136\t.\tA\tT\t.\tPASS\tgene=BRAF\tGT:DP:AD:VAF\t1/1:12:0,12:1",
	}, records)
}

func TestVarankConverter_MissingCoordinate(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "P1_allVariants.rankingByVar.tsv",
		varankInput+"var_9\tHet\t10\t5\t50\tTP53\n")
	coordinates := writeFile(t, dir, "coordinates.tsv", varankCoordinates)

	err := convertFile(t, FormatVarank, varankMapping, input, WithCoordinates(coordinates))
	var missing *coords.MissingCoordinateError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "var_9", missing.ID)
	assert.NoFileExists(t, filepath.Join(dir, "out.vcf"))
}

func TestParallelAssemble_Empty(t *testing.T) {
	items := make(chan WorkItem)
	close(items)
	calls := 0
	err := OrderedCollect(ParallelAssemble(nil, items, 2), func(WorkResult) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestOrderedCollect_StopsAtFirstError(t *testing.T) {
	results := make(chan WorkResult, 4)
	results <- WorkResult{Seq: 2}
	results <- WorkResult{Seq: 0}
	results <- WorkResult{Seq: 1, Err: errors.New("boom")}
	results <- WorkResult{Seq: 3}
	close(results)

	var seen []int
	err := OrderedCollect(results, func(r WorkResult) error {
		seen = append(seen, r.Seq)
		return r.Err
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []int{0, 1}, seen)
}

func TestFeed_Stop(t *testing.T) {
	rows := make([]table.Row, 100)
	stop := make(chan struct{})
	items := feed(rows, 0, stop)

	first := <-items
	assert.Equal(t, 0, first.Seq)
	close(stop)

	n := 0
	for range items {
		n++
	}
	assert.Less(t, n, 99)
}

func TestOrderedCollect_StopDrainsPipeline(t *testing.T) {
	cfg := parseMapping(t, "GENERAL:\n  origin: x\n  filename_ends: [a]\nVCF_COLUMNS:\n  \"#CHROM\": chr\n  POS: pos\n  REF: ref\n  ALT: alt\n")
	a, err := vcf.NewAssembler(cfg, nil, &transform.Env{})
	require.NoError(t, err)

	var b strings.Builder
	b.WriteString("chr\tpos\tref\talt\n")
	b.WriteString("chr1\tx\tA\tG\n")
	for i := range 500 {
		fmt.Fprintf(&b, "chr1\t%d\tA\tG\n", i+1)
	}
	tbl, err := table.Read(strings.NewReader(b.String()), 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		workers int
	}{
		{"single worker", 1},
		{"pool", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop := make(chan struct{})
			results := ParallelAssemble(a, feed(tbl.Rows, 2*tt.workers, stop), tt.workers)

			calls := 0
			err := OrderedCollect(results, func(res WorkResult) error {
				calls++
				if res.Err != nil {
					close(stop)
					return res.Err
				}
				return nil
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}
