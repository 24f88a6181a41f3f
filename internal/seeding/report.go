package seeding

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Status is the outcome of one item of a batch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result describes what happened to one product or category.
type Result struct {
	ID     uint
	Name   string
	Scope  string
	Tag    string
	Status Status
	// Reason explains a skip or a failure. For a success it lists the images
	// that could not be stored, if any.
	Reason string
	Images int
}

// Report collects the results of one batch run.
type Report struct {
	Task       string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result

	// Coverage, filled by Run: products in scope and products with at least one image.
	Products          int64
	ProductsWithImage int64
}

func newReport(task string, now time.Time) *Report {
	return &Report{Task: task, StartedAt: now}
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

// Count returns how many results have status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Images returns the number of images stored by the run.
func (r *Report) Images() int {
	n := 0
	for _, res := range r.Results {
		n += res.Images
	}
	return n
}

// Failed returns the failed results, in processing order.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Coverage is the share of products that have an image, 0 when there are none.
func (r *Report) Coverage() float64 {
	if r.Products == 0 {
		return 0
	}
	return float64(r.ProductsWithImage) / float64(r.Products)
}

func (r *Report) String() string {
	return fmt.Sprintf("%s: %d items, %d success, %d skipped, %d failed, %d images, coverage %d/%d",
		r.Task, len(r.Results), r.Count(StatusSuccess), r.Count(StatusSkipped), r.Count(StatusFailed),
		r.Images(), r.ProductsWithImage, r.Products)
}

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var resultsHeader = []any{"ID", "Name", "Scope", "Tag", "Status", "Images", "Reason"}

// WriteXLSX writes the report as a workbook with a Results sheet, one row
// per item, and a Summary sheet.
func (r *Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(resultsSheet, "A1", "G1", bold); err != nil {
		return err
	}

	for i, res := range r.Results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{res.ID, res.Name, res.Scope, res.Tag, string(res.Status), res.Images, res.Reason}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	summary := [][]any{
		{"Task", r.Task},
		{"Started", r.StartedAt.Format(time.RFC3339)},
		{"Finished", r.FinishedAt.Format(time.RFC3339)},
		{"Success", r.Count(StatusSuccess)},
		{"Skipped", r.Count(StatusSkipped)},
		{"Failed", r.Count(StatusFailed)},
		{"Images", r.Images()},
		{"Products", r.Products},
		{"Products with image", r.ProductsWithImage},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}
