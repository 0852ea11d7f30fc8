package pipeline

import (
	"reflect"
	"testing"

	"github.com/voiceshop/assistant/models"
)

func fp(v float64) *float64 { return &v }

func ragResult(products ...models.Product) models.ToolResult {
	return models.ToolResult{Tool: models.ToolRagSearch, Status: models.StatusSuccess, Products: products}
}

func webResult(products ...models.Product) models.ToolResult {
	return models.ToolResult{Tool: models.ToolWebSearch, Status: models.StatusSuccess, Products: products}
}

func TestReconcileRanksByCatalogOrderThenPrice(t *testing.T) {
	price := 20.0
	intent := Intent{Category: "toy fire truck"}
	intent.Constraints.MaxPrice = &price

	results := []models.ToolResult{ragResult(
		models.Product{ID: "a", Title: "Blaze Brigade Toy Fire Truck", Price: fp(12.99), Rating: fp(4.5), Source: models.ToolRagSearch, Rank: 0},
		models.Product{ID: "b", Title: "RescueForce Die-Cast Fire Truck", Price: fp(18.50), Rating: fp(4.0), Source: models.ToolRagSearch, Rank: 1},
		models.Product{ID: "c", Title: "Little Heroes Fire Truck Playset", Price: fp(19.99), Rating: fp(3.8), Source: models.ToolRagSearch, Rank: 2},
	)}

	ranked, cites := Reconcile(intent, results, 5)
	if len(ranked) != 3 {
		t.Fatalf("ranked = %d, want 3", len(ranked))
	}
	top, ok := ranked.TopPick()
	if !ok || top.ID != "a" {
		t.Fatalf("top pick = %+v, want catalog rank 0", top)
	}
	if !reflect.DeepEqual(cites.Rag, []string{"a", "b", "c"}) {
		t.Fatalf("rag citations = %v", cites.Rag)
	}
}

func TestReconcileDedupPrefersLivePrice(t *testing.T) {
	// Same id across sources, both priced: the live quote wins, the
	// catalog keeps the descriptive fields.
	intent := Intent{Category: "ps5 controller"}

	results := []models.ToolResult{
		ragResult(models.Product{ID: "sku-ps5-ctrl", Title: "PS5 DualSense Wireless Controller", Price: fp(69.99), Rating: fp(4.8), Brand: "Sony", Source: models.ToolRagSearch, Rank: 0}),
		webResult(models.Product{ID: "sku-ps5-ctrl", Title: "PS5 DualSense Wireless Controller!", Price: fp(58.00), Source: models.ToolWebSearch, URL: "https://w.example/ps5"}),
	}

	ranked, cites := Reconcile(intent, results, 5)
	if len(ranked) != 1 {
		t.Fatalf("ranked = %d, want 1 after dedup", len(ranked))
	}
	got := ranked[0]
	if got.Price == nil || *got.Price != 58.00 {
		t.Fatalf("price = %v, want live 58.00", got.Price)
	}
	if got.Brand != "Sony" || got.Rating == nil {
		t.Fatalf("descriptive fields must come from the catalog record: %+v", got)
	}
	if len(cites.Rag) != 1 || len(cites.Web) != 1 {
		t.Fatalf("merged entry must cite both sources: %+v", cites)
	}
}

func TestReconcileDoesNotMergeDistinctItems(t *testing.T) {
	// Same-ish names but different normalized titles and both priced:
	// these are distinct items.
	results := []models.ToolResult{
		ragResult(models.Product{ID: "x", Title: "Gleam Pro Cleaner", Price: fp(14.99), Source: models.ToolRagSearch, Rank: 0}),
		webResult(models.Product{ID: "https://w/x", Title: "Gleam Pro Cleaner Refill", Price: fp(8.99), Source: models.ToolWebSearch, URL: "https://w/x"}),
	}

	ranked, _ := Reconcile(Intent{}, results, 5)
	if len(ranked) != 2 {
		t.Fatalf("ranked = %d, want 2 distinct items", len(ranked))
	}
	if ranked[0].ID != "x" {
		t.Fatalf("catalog item must rank before web-only item, got %+v", ranked[0])
	}
}

func TestReconcileMergesOnMissingPrice(t *testing.T) {
	// Different id schemes, same title, one record missing the price the
	// other supplies: same underlying item.
	results := []models.ToolResult{
		ragResult(models.Product{ID: "cat-9", Title: "EcoShine Stainless Steel Cleaner Spray", Rating: fp(4.6), Source: models.ToolRagSearch, Rank: 0}),
		webResult(models.Product{ID: "https://w/eco", Title: "EcoShine Stainless Steel Cleaner Spray", Price: fp(11.75), Source: models.ToolWebSearch, URL: "https://w/eco"}),
	}

	ranked, _ := Reconcile(Intent{}, results, 5)
	if len(ranked) != 1 {
		t.Fatalf("ranked = %d, want 1 merged item", len(ranked))
	}
	if ranked[0].Price == nil || *ranked[0].Price != 11.75 {
		t.Fatalf("merged price = %v, want the supplied 11.75", ranked[0].Price)
	}
}

func TestReconcileFiltersOverBudget(t *testing.T) {
	price := 15.0
	intent := Intent{}
	intent.Constraints.MaxPrice = &price

	results := []models.ToolResult{ragResult(
		models.Product{ID: "cheap", Title: "Budget Cleaner", Price: fp(9.99), Source: models.ToolRagSearch, Rank: 0},
		models.Product{ID: "pricey", Title: "Premium Cleaner", Price: fp(29.99), Source: models.ToolRagSearch, Rank: 1},
	)}

	ranked, _ := Reconcile(intent, results, 5)
	if len(ranked) != 1 || ranked[0].ID != "cheap" {
		t.Fatalf("over-budget item must be dropped, got %+v", ranked)
	}
}

func TestReconcileCapsAtTopN(t *testing.T) {
	var products []models.Product
	for i := 0; i < 8; i++ {
		products = append(products, models.Product{
			ID: string(rune('a' + i)), Title: "Item " + string(rune('a'+i)),
			Price: fp(float64(10 + i)), Source: models.ToolRagSearch, Rank: i,
		})
	}
	ranked, _ := Reconcile(Intent{}, []models.ToolResult{ragResult(products...)}, 5)
	if len(ranked) != 5 {
		t.Fatalf("ranked = %d, want cap 5", len(ranked))
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	results := []models.ToolResult{
		ragResult(
			models.Product{ID: "a", Title: "Alpha Cleaner", Price: fp(10), Rating: fp(4.0), Source: models.ToolRagSearch, Rank: 0},
			models.Product{ID: "b", Title: "Beta Cleaner", Price: fp(8), Rating: fp(4.4), Source: models.ToolRagSearch, Rank: 1},
		),
		webResult(models.Product{ID: "https://w/a", Title: "Alpha Cleaner", Price: fp(9.5), Source: models.ToolWebSearch, URL: "https://w/a"}),
	}

	first, firstCites := Reconcile(Intent{}, results, 5)
	second, secondCites := Reconcile(Intent{}, results, 5)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reconcile not idempotent:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(firstCites, secondCites) {
		t.Fatalf("citations not idempotent")
	}
}
