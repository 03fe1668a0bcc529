package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/statement-categorizer/internal/api"
	"github.com/insightdelivered/statement-categorizer/internal/categorizer"
	"github.com/insightdelivered/statement-categorizer/internal/extractor"
	"github.com/insightdelivered/statement-categorizer/internal/models"
	"github.com/insightdelivered/statement-categorizer/internal/statement"
)

const statementText = `ATTIJARIWAFA BANK - RELEVE DE COMPTE
02/01/2024  PAIEMENT PAR CARTE 4112 BIM 1714           150.50
03/01/2024  VIREMENT RECU DE ENTREPRISE ABC                        3000.00
05/01/2024  LOYER JANVIER PRELEVEMENT                   500.00
08/01/2024  RETRAIT GAB AGENCE CENTRE               245.75
10/01/2024  FRAIS DE TENUE DE COMPTE                85.00
31/01/2024  SOLDE FIN DE PERIODE                    2018.75`

type fakeText struct{}

func (fakeText) Extract(context.Context, []byte) (extractor.Document, error) {
	return extractor.Document{Text: statementText, PageCount: 2}, nil
}

func newTestProcessor(t *testing.T) (*statement.Processor, *categorizer.Store) {
	t.Helper()
	cats, err := categorizer.NewStore("", zerolog.Nop())
	require.NoError(t, err)
	return statement.NewProcessor(fakeText{}, cats, zerolog.Nop()), cats
}

func writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, api.Version, root.Version)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "parse", "categories"}, names)
}

func TestProcessFile_CSV(t *testing.T) {
	proc, cats := newTestProcessor(t)
	input := writeInput(t, "releve.pdf")

	var out bytes.Buffer
	err := processFile(context.Background(), &out, proc, cats, input, parseOptions{header: true})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Extracted text from 2 page(s)")
	assert.Contains(t, out.String(), "Found 5 transaction(s)")
	assert.Contains(t, out.String(), "Net: 2018.75")

	data, err := os.ReadFile(strings.TrimSuffix(input, ".pdf") + ".csv")
	require.NoError(t, err)
	csv := string(data)
	assert.Contains(t, csv, "# File,releve.pdf")
	assert.Contains(t, csv, ",Outgoing,Shopping,150.50")
	assert.Contains(t, csv, ",Incoming,Transfers,3000.00")
}

func TestProcessFile_OutputPath(t *testing.T) {
	proc, cats := newTestProcessor(t)
	input := writeInput(t, "releve.pdf")
	output := filepath.Join(t.TempDir(), "janvier.csv")

	var out bytes.Buffer
	require.NoError(t, processFile(context.Background(), &out, proc, cats, input, parseOptions{output: output}))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Date,Description,Status,Category,Amount\n"))
}

func TestProcessFile_JSON(t *testing.T) {
	proc, cats := newTestProcessor(t)
	input := writeInput(t, "releve.pdf")

	var out bytes.Buffer
	require.NoError(t, processFile(context.Background(), &out, proc, cats, input, parseOptions{json: true}))

	var res api.StatementResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "releve.pdf", res.FileName)
	require.Len(t, res.Records, 5)
	assert.Equal(t, models.StatusIncoming, res.Records[1].Status)

	_, err := os.Stat(strings.TrimSuffix(input, ".pdf") + ".csv")
	assert.True(t, os.IsNotExist(err))
}

func TestProcessFile_Errors(t *testing.T) {
	proc, cats := newTestProcessor(t)

	err := processFile(context.Background(), &bytes.Buffer{}, proc, cats, writeInput(t, "notes.txt"), parseOptions{})
	assert.ErrorContains(t, err, `expected .pdf file, got ".txt"`)

	err = processFile(context.Background(), &bytes.Buffer{}, proc, cats, filepath.Join(t.TempDir(), "missing.pdf"), parseOptions{})
	assert.ErrorContains(t, err, "reading input")
}

func TestParseCommand_OutputWithManyInputs(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"parse", "--output", "x.csv", "a.pdf", "b.pdf"})

	err := root.Execute()
	assert.ErrorContains(t, err, "--output can only be used with a single input file")
}

func TestCategoriesList(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"categories", "list"})

	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(categorizer.DefaultCategories())+1)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, out.String(), categorizer.DefaultOutID)
	assert.Contains(t, out.String(), "Other income")
}

func TestCategoriesExport(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"categories", "export", "--file", filepath.Join(t.TempDir(), "missing.yaml")})

	require.NoError(t, root.Execute())

	var f struct {
		Categories []models.Category `yaml:"categories"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &f))
	defaults := categorizer.DefaultCategories()
	require.Len(t, f.Categories, len(defaults))
	for i, c := range defaults {
		assert.Equal(t, c.ID, f.Categories[i].ID)
		assert.Equal(t, c.Default, f.Categories[i].Default)
	}
}

func TestAppliesTo(t *testing.T) {
	assert.Equal(t, "ALL", appliesTo(models.Category{}))
	assert.Equal(t, "OUT", appliesTo(models.Category{ApplicableFor: []models.Direction{models.DirectionOut}}))
}
