package strategy

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/detection/detectiontest"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

func TestColorFilter_UsesBorderRarity(t *testing.T) {
	hb, in := hotbarInput(t)

	got, err := ColorFilter{}.Detect(context.Background(), in)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	// Cells 1-4 each have the only entity of their rarity.
	for i := 1; i <= 4; i++ {
		r, iou := findAt(got, detection.ROIFromRect(hb.Cell(i)))
		if iou < 0.99 {
			t.Errorf("cell %d: no result", i)
			continue
		}
		if r.Entity.ID != in.Entities[i].ID || r.Method != MethodColor {
			t.Errorf("cell %d: got %s via %s", i, r.Entity.ID, r.Method)
		}
		if r.Confidence < 0.8 {
			t.Errorf("cell %d: confidence %v", i, r.Confidence)
		}
		if r.Position.Label != "" {
			t.Errorf("cell %d: label %q leaked into result", i, r.Position.Label)
		}
	}
}

func TestColorFilter_RarityExcludesMismatch(t *testing.T) {
	_, in := hotbarInput(t)
	// Only a legendary candidate: the epic cell must not claim it.
	red := detection.Entity{
		EntityRef: detection.EntityRef{ID: "legend", Rarity: detection.RarityLegendary},
		Template:  detectiontest.IconTemplate(3, imaging.TemplateSize),
	}
	in.Entities = []detection.Entity{red}
	in.Cells = in.Cells[3:4]

	got, err := ColorFilter{}.Detect(context.Background(), in)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want nothing", got)
	}
}

func TestColorFilter_BandPresence(t *testing.T) {
	frame := detectiontest.Uniform(1920, 1080, detectiontest.Background)
	for x := 880; x < 1060; x += 45 {
		detectiontest.Icon(frame, image.Rect(x, 1000, x+45, 1045), 0)
	}

	store, _ := NewTemplateStore(0)
	entities := testEntities()[:1]
	entities = append(entities, detection.Entity{
		EntityRef: detection.EntityRef{ID: "red"},
		Template:  detectiontest.Uniform(64, 64, color.RGBA{220, 20, 20, 255}),
	})

	in := Input{
		Source:    imaging.NewBuffer(frame),
		Width:     1920,
		Height:    1080,
		Region:    detection.HotbarRegion{TopY: 996, BottomY: 1049},
		Scale:     detection.IconScaleResult{IconSize: 45},
		Entities:  entities,
		Templates: store,
		Threshold: 0.55,
	}
	got, err := ColorFilter{}.Detect(context.Background(), in)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 1 || got[0].Entity.ID != "item-0" {
		t.Fatalf("got %+v, want only item-0", got)
	}
	if got[0].HasPosition() {
		t.Error("band presence result should have no position")
	}
	if got[0].Confidence > 0.6 {
		t.Errorf("confidence %v should stay low", got[0].Confidence)
	}
}

func TestColorMargin(t *testing.T) {
	tests := []struct {
		gap, want float64
	}{
		{0, 0.5},
		{0.05, 0.75},
		{0.1, 1},
		{0.4, 1},
	}
	for _, tt := range tests {
		if got := colorMargin(tt.gap); got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Errorf("colorMargin(%v) = %v, want %v", tt.gap, got, tt.want)
		}
	}
}
