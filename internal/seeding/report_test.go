package seeding

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() *Report {
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Report{
		Task:       "products",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Results: []Result{
			{ID: 1, Name: "Casquette Classique", Scope: "Accessoires", Tag: "Casquette", Status: StatusSuccess, Images: 1},
			{ID: 2, Name: "Coffret Cadeau", Scope: "Hommes", Tag: "Autre", Status: StatusSkipped, Reason: "Autre: no image pool available"},
			{ID: 3, Name: "Parfum Élégance", Scope: "Hommes", Tag: "Parfum", Status: StatusFailed, Reason: "product: status 404"},
			{ID: 4, Name: "Robe Été", Scope: "Femmes", Tag: "Robe", Status: StatusSuccess, Images: 2},
		},
		Products:          4,
		ProductsWithImage: 2,
	}
}

func TestReportCounts(t *testing.T) {
	r := sampleReport()

	assert.Equal(t, 2, r.Count(StatusSuccess))
	assert.Equal(t, 1, r.Count(StatusSkipped))
	assert.Equal(t, 1, r.Count(StatusFailed))
	assert.Equal(t, 3, r.Images())
	assert.Equal(t, 0.5, r.Coverage())
	require.Len(t, r.Failed(), 1)
	assert.Equal(t, uint(3), r.Failed()[0].ID)
	assert.Equal(t, "products: 4 items, 2 success, 1 skipped, 1 failed, 3 images, coverage 2/4", r.String())

	assert.Equal(t, 0.0, (&Report{}).Coverage())
}

func TestReportWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"ID", "Name", "Scope", "Tag", "Status", "Images", "Reason"}, rows[0])
	assert.Equal(t, []string{"3", "Parfum Élégance", "Hommes", "Parfum", "failed", "0", "product: status 404"}, rows[3])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Failed", "1"}, summary[5])
	assert.Equal(t, []string{"Products with image", "2"}, summary[8])
}
