/*
scenarios.go - Demo scenario loader for testing and demonstrations

PURPOSE:

	Populates the database with realistic data for testing and demos:
	one active evaluation template with a mix of item kinds, one product,
	and one open session ready to record against.

HOW THE SCENARIO WORKS:
 1. Reset database (clear all data)
 2. Create the vehicle safety template with four items
 3. Create the demo product
 4. Create one session bound to both

USAGE VIA API:

	POST /api/scenarios/load

NOTE:

	Loading the scenario resets the database. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: Error helpers
  - factory/template.go: YAML-based template loading for real deployments
*/
package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/eval-engine/record"
	"github.com/warp/eval-engine/store/sqlite"
)

// Stable ids so demo clients can hard-code links.
const (
	demoTemplateID = "tpl-vehicle-safety"
	demoProductID  = "prod-car-001"
	demoSessionID  = "sess-demo-run"
)

// LoadScenario resets the database and seeds the demo data set.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := loadDemoScenario(ctx, h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "loaded",
		"templateId": demoTemplateID,
		"productId":  demoProductID,
		"sessionId":  demoSessionID,
	})
}

// loadDemoScenario seeds one template, one product and one session.
func loadDemoScenario(ctx context.Context, store *sqlite.Store) error {
	if err := store.SaveTemplate(ctx, sqlite.Template{
		ID:      demoTemplateID,
		Name:    "Vehicle Safety Evaluation",
		Status:  "ACTIVE",
		Version: 1,
	}); err != nil {
		return err
	}

	items := []record.Item{
		{
			ID: "item-max-speed", Key: "max_speed", Label: "Maximum speed",
			Kind: record.KindNumber, Unit: "km/h", Required: true,
			Weight: decimal.RequireFromString("1.5"), Order: 10,
		},
		{
			ID: "item-brake-dist", Key: "brake_dist", Label: "Braking distance",
			Kind: record.KindNumber, Unit: "m", Required: true,
			Weight: decimal.RequireFromString("2"), Order: 20,
		},
		{
			ID: "item-noise", Key: "noise", Label: "Cabin noise",
			Kind: record.KindNumber, Unit: "dB",
			Weight: decimal.NewFromInt(1), Order: 30,
		},
		{
			ID: "item-passed", Key: "passed", Label: "Safety check passed",
			Kind: record.KindBool, Required: true,
			Weight: decimal.NewFromInt(1), Order: 40,
		},
	}
	for _, item := range items {
		item.TemplateID = demoTemplateID
		if err := store.SaveItem(ctx, item); err != nil {
			return err
		}
	}

	if err := store.SaveProduct(ctx, sqlite.Product{
		ID:    demoProductID,
		Code:  "CAR-001",
		Name:  "Prototype A",
		Model: "A1",
	}); err != nil {
		return err
	}

	return store.SaveSession(ctx, sqlite.Session{
		ID:         demoSessionID,
		Name:       "Demo evaluation run",
		TemplateID: demoTemplateID,
		ProductID:  demoProductID,
	})
}
