package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecords_DropsNonHTTPURL(t *testing.T) {
	input := "Company_Name,Website_URL,Offer\n" +
		"Acme,https://acme.example,SEO audit\n" +
		"Globex,ftp://globex.example,Ads\n"

	result, err := ParseRecords(input)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "Acme", result.Records[0].CompanyName)
	assert.Equal(t, "https://acme.example", result.Records[0].WebsiteURL)
	assert.Equal(t, "SEO audit", result.Records[0].Offer)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 3, result.Rejected[0].Line)
	assert.Equal(t, ReasonBadScheme, result.Rejected[0].Reason)
}

func TestParseRecords_LowercasesScheme(t *testing.T) {
	input := "Company_Name,Website_URL,Offer\n" +
		"Acme,HTTPS://Acme.example/About,SEO audit\n" +
		"Globex,Http://globex.example,Ads\n"

	result, err := ParseRecords(input)
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "https://Acme.example/About", result.Records[0].WebsiteURL)
	assert.Equal(t, "http://globex.example", result.Records[1].WebsiteURL)
	assert.Empty(t, result.Rejected)
}

func TestParseRecords_BadHeader(t *testing.T) {
	inputs := []string{
		"Name,URL,Offer\nAcme,https://acme.example,x\n",
		"Website_URL,Company_Name,Offer\nAcme,https://acme.example,x\n",
		"Company_Name,Website_URL\nAcme,https://acme.example\n",
	}

	for _, input := range inputs {
		result, err := ParseRecords(input)
		require.Error(t, err)
		assert.Nil(t, result)

		var fmtErr *FormatError
		require.ErrorAs(t, err, &fmtErr)
		assert.Contains(t, err.Error(), "Company_Name,Website_URL,Offer")
	}
}

func TestParseRecords_EmptyInput(t *testing.T) {
	_, err := ParseRecords("   \n")
	var fmtErr *FormatError
	require.ErrorAs(t, err, &fmtErr)
}

func TestParseRecords_NoValidRows(t *testing.T) {
	input := "Company_Name,Website_URL,Offer\nAcme,acme.example,x\n,https://b.example,y\n"

	result, err := ParseRecords(input)
	var fmtErr *FormatError
	require.ErrorAs(t, err, &fmtErr)
	assert.Contains(t, err.Error(), "no valid companies")
	require.NotNil(t, result)
	assert.Empty(t, result.Records)
	assert.Len(t, result.Rejected, 2)
}

func TestParseRecords_OfferWithCommasAndQuotes(t *testing.T) {
	input := "Company_Name,Website_URL,Offer\n" +
		`Initech,https://initech.example,"Cloud migration, support, and training"` + "\n"

	result, err := ParseRecords(input)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Cloud migration, support, and training", result.Records[0].Offer)
}

func TestParseRecords_RowPolicies(t *testing.T) {
	input := "Company_Name,Website_URL,Offer\r\n" +
		"OnlyTwo,https://two.example\r\n" +
		"   ,https://blank.example,x\r\n" +
		"NoOffer,https://nooffer.example,\r\n" +
		"\r\n" +
		"Good,http://good.example,Consulting\r\n"

	result, err := ParseRecords(input)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "Good", result.Records[0].CompanyName)

	reasons := map[int]string{}
	for _, r := range result.Rejected {
		reasons[r.Line] = r.Reason
	}
	assert.Equal(t, map[int]string{
		2: ReasonTooFewColumns,
		3: ReasonEmptyField,
		4: ReasonEmptyField,
	}, reasons)
}

func TestParseRecords_HeaderWithTrailingColumns(t *testing.T) {
	input := "Company_Name, Website_URL ,Offer,Notes\nAcme,https://acme.example,Ads,extra\n"

	result, err := ParseRecords(input)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Ads,extra", result.Records[0].Offer)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companies.csv")
	require.NoError(t, os.WriteFile(path, []byte("Company_Name,Website_URL,Offer\nAcme,https://acme.example,Ads\n"), 0o600))

	result, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)

	_, err = ParseFile(filepath.Join(dir, "missing.csv"))
	var fmtErr *FormatError
	require.ErrorAs(t, err, &fmtErr)
}
