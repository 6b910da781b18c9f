package report

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/units"
)

const histBins = 20

// Histograms returns the rotation and translation error histograms of the
// scored entries.
func (r *Report) Histograms() (*plot.Plot, *plot.Plot, error) {
	if len(r.Entries) == 0 {
		return nil, nil, fmt.Errorf("no scored entries to plot")
	}
	rot := make(plotter.Values, len(r.Entries))
	trans := make(plotter.Values, len(r.Entries))
	for i, e := range r.Entries {
		rot[i] = e.RotDeg
		trans[i] = units.MToCM(e.TransM)
	}

	pRot := plot.New()
	pRot.Title.Text = fmt.Sprintf("Rotation error (%d entries)", len(rot))
	pRot.X.Label.Text = "Error (deg)"
	pRot.Y.Label.Text = "Entries"
	hRot, err := plotter.NewHist(rot, histBins)
	if err != nil {
		return nil, nil, fmt.Errorf("rotation histogram: %w", err)
	}
	hRot.LineStyle.Width = vg.Points(1)
	pRot.Add(hRot)

	pTrans := plot.New()
	pTrans.Title.Text = fmt.Sprintf("Translation error (%d entries)", len(trans))
	pTrans.X.Label.Text = "Error (cm)"
	pTrans.Y.Label.Text = "Entries"
	hTrans, err := plotter.NewHist(trans, histBins)
	if err != nil {
		return nil, nil, fmt.Errorf("translation histogram: %w", err)
	}
	hTrans.LineStyle.Width = vg.Points(1)
	pTrans.Add(hTrans)
	return pRot, pTrans, nil
}

// WritePlots saves rot_err.png and trans_err.png under dir.
func (r *Report) WritePlots(fsys fsutil.FileSystem, dir string) error {
	pRot, pTrans, err := r.Histograms()
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	for name, p := range map[string]*plot.Plot{"rot_err.png": pRot, "trans_err.png": pTrans} {
		if err := savePNG(fsys, filepath.Join(dir, name), p); err != nil {
			return err
		}
	}
	return nil
}

func savePNG(fsys fsutil.FileSystem, path string, p *plot.Plot) error {
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderHTML writes an interactive page with per-entry error lines, one
// chart per video.
func (r *Report) RenderHTML(w io.Writer) error {
	page := components.NewPage()
	page.PageTitle = "Pose errors"

	var (
		videoOrder []string
		byVideo    = make(map[string][]EntryError)
	)
	for _, e := range r.Entries {
		if _, ok := byVideo[e.VideoID]; !ok {
			videoOrder = append(videoOrder, e.VideoID)
		}
		byVideo[e.VideoID] = append(byVideo[e.VideoID], e)
	}

	for _, video := range videoOrder {
		entries := byVideo[video]
		x := make([]string, len(entries))
		rot := make([]opts.LineData, len(entries))
		trans := make([]opts.LineData, len(entries))
		for i, e := range entries {
			x[i] = fmt.Sprintf("%s/%d", e.FrameID, e.ObjectID)
			rot[i] = opts.LineData{Value: e.RotDeg}
			trans[i] = opts.LineData{Value: units.MToCM(e.TransM)}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
			charts.WithTitleOpts(opts.Title{Title: "Video " + video, Subtitle: r.Summary.String()}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "frame/object"}),
			charts.WithYAxisOpts(opts.YAxis{Name: "error"}),
		)
		line.SetXAxis(x).
			AddSeries("rotation (deg)", rot).
			AddSeries("translation (cm)", trans)
		page.AddCharts(line)
	}
	return page.Render(w)
}

// WriteHTML renders the page to path.
func (r *Report) WriteHTML(fsys fsutil.FileSystem, path string) error {
	var buf bytes.Buffer
	if err := r.RenderHTML(&buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
