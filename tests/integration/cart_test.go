//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"regexp"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestCart_NoAuth(t *testing.T) {
	resp := doGet(t, "/api/cart")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCart_InvalidKey(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/cart", nil, "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCart_AddAndGet(t *testing.T) {
	resetCart(t)

	// 2x Chain Tensioner at 18.50.
	resp := doPostAuth(t, "/api/cart", addLineRequest{ProductID: "2", Quantity: 2})
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	line := decodeJSON[cartLineResponse](t, resp)
	resp.Body.Close()
	if !uuidPattern.MatchString(line.ID) {
		t.Errorf("line ID %q is not a valid UUID", line.ID)
	}
	if line.Quantity != 2 {
		t.Errorf("quantity: got %d, want 2", line.Quantity)
	}

	resp = doGetAuth(t, "/api/cart")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	view := decodeJSON[cartViewResponse](t, resp)
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(view.Items))
	}
	if view.Items[0].Name != "Chain Tensioner" {
		t.Errorf("name: got %q, want %q", view.Items[0].Name, "Chain Tensioner")
	}
	if view.Subtotal != 37 {
		t.Errorf("subtotal: got %v, want 37", view.Subtotal)
	}
}

func TestCart_SameVariantMerges(t *testing.T) {
	resetCart(t)

	resp := doPostAuth(t, "/api/cart", addLineRequest{ProductID: "5", Quantity: 1})
	resp.Body.Close()
	resp = doPostAuth(t, "/api/cart", addLineRequest{ProductID: "5", Quantity: 2})
	resp.Body.Close()

	resp = doGetAuth(t, "/api/cart")
	defer resp.Body.Close()

	view := decodeJSON[cartViewResponse](t, resp)
	if len(view.Items) != 1 {
		t.Fatalf("expected merged single line, got %d", len(view.Items))
	}
	if view.Items[0].Quantity != 3 {
		t.Errorf("quantity: got %d, want 3", view.Items[0].Quantity)
	}
}

func TestCart_UpdateAndRemoveLine(t *testing.T) {
	resetCart(t)

	resp := doPostAuth(t, "/api/cart", addLineRequest{ProductID: "3", Quantity: 1})
	line := decodeJSON[cartLineResponse](t, resp)
	resp.Body.Close()

	resp = doRequest(t, http.MethodPut, "/api/cart/"+line.ID, map[string]int{"quantity": 4}, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	updated := decodeJSON[cartLineResponse](t, resp)
	resp.Body.Close()
	if updated.Quantity != 4 {
		t.Errorf("quantity after update: got %d, want 4", updated.Quantity)
	}

	resp = doRequest(t, http.MethodDelete, "/api/cart/"+line.ID, nil, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	// Deleting again yields 404.
	resp = doRequest(t, http.MethodDelete, "/api/cart/"+line.ID, nil, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestCart_AddUnknownProduct(t *testing.T) {
	resp := doPostAuth(t, "/api/cart", addLineRequest{ProductID: "999", Quantity: 1})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCart_InvalidQuantity(t *testing.T) {
	resp := doPostAuth(t, "/api/cart", addLineRequest{ProductID: "1", Quantity: 0})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message == "" {
		t.Error("error message is empty")
	}
}

func TestCart_VariantsStaySeparate(t *testing.T) {
	resetCart(t)

	for _, color := range []string{"red", "blue"} {
		resp := doPostAuth(t, "/api/cart", addLineRequest{ProductID: "6", Quantity: 1, Color: color})
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add %s: expected 201, got %d", color, resp.StatusCode)
		}
	}

	resp := doGetAuth(t, "/api/cart")
	defer resp.Body.Close()

	view := decodeJSON[cartViewResponse](t, resp)
	if len(view.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(view.Items))
	}
	if fmt.Sprintf("%.2f", view.Subtotal) != "65.60" {
		t.Errorf("subtotal: got %v, want 65.60", view.Subtotal)
	}
}
