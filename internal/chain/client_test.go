package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error when base url is missing")
	}
}

func TestReadDispatchesToReadRoute(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CallResult{Success: true, Data: "42"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.Read(context.Background(), CallRequest{
		ContractAddress: "0x1111111111111111111111111111111111111111",
		FunctionName:    "balanceOf",
		Inputs:          []any{"0x2222222222222222222222222222222222222222"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/contracts/read" {
		t.Fatalf("read call used route %q", gotPath)
	}
	if !result.Success || result.Data != "42" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, hasGas := gotBody["gasLimit"]; hasGas {
		t.Fatalf("read payload must not carry gas fields: %v", gotBody)
	}
	if gotBody["networkId"] != float64(DefaultNetworkID) {
		t.Fatalf("default network id missing: %v", gotBody["networkId"])
	}
}

func TestWriteCarriesGasFields(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CallResult{Success: true, TransactionHash: "0xabc"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.Write(context.Background(), CallRequest{
		ContractAddress: "0x1111111111111111111111111111111111111111",
		FunctionName:    "mint",
		Inputs:          []any{"0x2222222222222222222222222222222222222222", "5000000"},
		GasLimit:        "300000",
		MaxPriorityFee:  "2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/contracts/write" {
		t.Fatalf("write call used route %q", gotPath)
	}
	if result.TransactionHash != "0xabc" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotBody["gasLimit"] != "300000" || gotBody["maxPriorityFee"] != "2" {
		t.Fatalf("gas fields missing from write payload: %v", gotBody)
	}
}

func TestDispatchReportsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient funds", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Write(context.Background(), CallRequest{FunctionName: "mint"}); err == nil {
		t.Fatalf("expected error for http failure")
	}
}
