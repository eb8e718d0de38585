package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"okeanchat/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", domain.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: nope", domain.ErrForbidden), http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: db down", domain.ErrPersistence), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	if err := DecodeJSON(r, &body); err != nil || body.Name != "x" {
		t.Fatalf("decode: %v %+v", err, body)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	if err := DecodeJSON(r, &body); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("unknown field: %v", err)
	}
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&size=x", nil)
	if n, err := QueryInt(r, "page", 0); err != nil || n != 3 {
		t.Fatalf("page: %d %v", n, err)
	}
	if _, err := QueryInt(r, "size", 50); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("size: %v", err)
	}
	if n, _ := QueryInt(r, "missing", 7); n != 7 {
		t.Fatalf("default: %d", n)
	}
}
