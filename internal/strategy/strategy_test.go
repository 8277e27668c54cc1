package strategy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/detection/detectiontest"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

var hotbarRarities = []detection.Rarity{
	detection.RarityCommon,
	detection.RarityUncommon,
	detection.RarityRare,
	detection.RarityEpic,
	detection.RarityLegendary,
	detection.RarityCommon,
}

// testEntities returns one entity per icon variant with the rarity of the
// cell it is drawn in by detectiontest.Default1080p.
func testEntities() []detection.Entity {
	entities := make([]detection.Entity, len(hotbarRarities))
	for i := range entities {
		entities[i] = detection.Entity{
			EntityRef: detection.EntityRef{
				ID:     fmt.Sprintf("item-%d", i),
				Name:   fmt.Sprintf("Item %d", i),
				Rarity: hotbarRarities[i],
			},
			Type:     "item",
			Template: detectiontest.IconTemplate(i, imaging.TemplateSize),
		}
	}
	return entities
}

// hotbarInput builds the input a run over Default1080p would hand to the
// strategies, with cells exactly on the drawn icons.
func hotbarInput(t *testing.T) (detectiontest.Hotbar, Input) {
	t.Helper()
	hb := detectiontest.Default1080p()
	store, err := NewTemplateStore(0)
	if err != nil {
		t.Fatalf("NewTemplateStore: %v", err)
	}
	cells := make([]detection.ROI, len(hb.Borders))
	for i := range cells {
		cells[i] = detection.ROIFromRect(hb.Cell(i))
	}
	return hb, Input{
		Source:    imaging.NewBuffer(hb.Render()),
		Width:     hb.Width,
		Height:    hb.Height,
		Region:    detection.HotbarRegion{TopY: 996, BottomY: 1049, Confidence: 0.9},
		Scale:     detection.IconScaleResult{IconSize: hb.CellSize, Confidence: 0.9, Method: detection.MethodEdgeAnalysis},
		Grid:      detection.GridParams{XSpacing: float64(hb.Pitch), Tolerance: 9},
		HaveGrid:  true,
		Cells:     cells,
		Entities:  testEntities(),
		Palette:   detection.DefaultPalette(),
		Templates: store,
		Threshold: 0.55,
	}
}

// findAt returns the result overlapping want the most.
func findAt(results []detection.Result, want detection.ROI) (detection.Result, float64) {
	var best detection.Result
	bestIoU := 0.0
	for _, r := range results {
		if !r.HasPosition() {
			continue
		}
		if iou := detection.IoU(*r.Position, want); iou > bestIoU {
			best, bestIoU = r, iou
		}
	}
	return best, bestIoU
}

func TestRegistry_Select(t *testing.T) {
	r := DefaultRegistry()

	if got := r.IDs(); len(got) != 3 || got[0] != IDTemplate || got[1] != IDColor || got[2] != IDSlidingWindow {
		t.Fatalf("IDs: got %v", got)
	}

	sel, err := r.Select([]string{IDColor, IDTemplate, IDColor})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(sel) != 2 || sel[0].ID() != IDColor || sel[1].ID() != IDTemplate {
		t.Errorf("Select order/dedupe wrong: %v", sel)
	}

	if _, err := r.Select([]string{"ocr"}); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("unknown id: got %v, want ErrUnknownStrategy", err)
	}

	sel, err = r.Select(nil)
	if err != nil || len(sel) != 0 {
		t.Errorf("empty selection: got %v, %v", sel, err)
	}
}

func TestRegistry_LaterReplaces(t *testing.T) {
	r := NewRegistry(SlidingWindow{}, SlidingWindow{MinEdgeDensity: 0.5})
	if ids := r.IDs(); len(ids) != 1 {
		t.Fatalf("IDs: got %v", ids)
	}
	sel, _ := r.Select([]string{IDSlidingWindow})
	if sw := sel[0].(SlidingWindow); sw.MinEdgeDensity != 0.5 {
		t.Errorf("got %+v, want the later registration", sw)
	}
}

func TestInnerInset(t *testing.T) {
	tests := []struct {
		size, want int
	}{
		{45, 3},
		{60, 4},
		{80, 5},
		{8, 1},
	}
	for _, tt := range tests {
		if got := innerInset(tt.size); got != tt.want {
			t.Errorf("innerInset(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestTopTwo(t *testing.T) {
	a, b, c := &detection.Entity{}, &detection.Entity{}, &detection.Entity{}
	first, second := topTwo([]scoredEntity{{entity: a, score: 0.2}, {entity: b, score: 0.9}, {entity: c, score: 0.5}})
	if first.entity != b || second.entity != c {
		t.Errorf("got %v/%v", first.score, second.score)
	}

	first, second = topTwo(nil)
	if first.entity != nil || second.entity != nil {
		t.Error("empty input should give zero values")
	}
}
