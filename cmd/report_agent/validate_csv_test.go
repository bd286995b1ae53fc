package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/prospect-reports/internal/ingestion"
)

func runValidateCSVWith(t *testing.T, path string) (string, error) {
	t.Helper()
	prev := validateCSVInput
	validateCSVInput = path
	t.Cleanup(func() { validateCSVInput = prev })

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := runValidateCSV(cmd, nil)
	return buf.String(), err
}

func TestValidateCSV(t *testing.T) {
	path := writeCSV(t, "Company_Name,Website_URL,Offer\n"+
		"Acme,https://acme.example,SEO audit\n"+
		"Broken,acme.example,SEO audit\n"+
		"OnlyTwo,https://two.example\n")

	output, err := runValidateCSVWith(t, path)
	require.NoError(t, err)

	assert.Contains(t, output, "1. Acme")
	assert.Contains(t, output, "line 3: "+ingestion.ReasonBadScheme)
	assert.Contains(t, output, "line 4: "+ingestion.ReasonTooFewColumns)
	assert.Contains(t, output, "1 accepted, 2 skipped")
}

func TestValidateCSV_BadHeader(t *testing.T) {
	path := writeCSV(t, "Name,URL,Offer\nAcme,https://acme.example,SEO\n")

	_, err := runValidateCSVWith(t, path)

	var formatErr *ingestion.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, err.Error(), "invalid headers")
}

func TestValidateCSV_NoValidRowsStillListsRejected(t *testing.T) {
	path := writeCSV(t, "Company_Name,Website_URL,Offer\nAcme,acme.example,SEO\n")

	output, err := runValidateCSVWith(t, path)

	require.Error(t, err)
	assert.Contains(t, output, "SKIPPED ROWS")
}

func TestValidateCSV_MissingFile(t *testing.T) {
	_, err := runValidateCSVWith(t, "does-not-exist.csv")
	require.Error(t, err)
}
