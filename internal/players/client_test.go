package players

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewClientRequiresOpts(t *testing.T) {
	if _, err := NewClient(ClientOpts{Origin: "o", Secret: "s"}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if _, err := NewClient(ClientOpts{Endpoint: "e", Secret: "s"}); err == nil {
		t.Fatal("expected error for missing origin")
	}
	if _, err := NewClient(ClientOpts{Endpoint: "e", Origin: "o"}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

func TestLookupSignsForm(t *testing.T) {
	var gotBody string
	var gotOrigin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotOrigin = r.Header.Get("Origin")
		fmt.Fprint(w, `{"code":0,"data":{"fid":42,"nickname":"Saltpeter","kid":172,"stove_lv":37,"avatar_image":"https://img.example/42.png"},"msg":"success","err_code":""}`)
	}))
	defer srv.Close()

	c, err := NewClient(ClientOpts{Endpoint: srv.URL, Origin: "https://example.com", Secret: "sekrit"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	profile, err := c.Lookup(context.Background(), "42")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if gotOrigin != "https://example.com" {
		t.Fatalf("origin = %q", gotOrigin)
	}
	vals, err := url.ParseQuery(gotBody)
	if err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if vals.Get("fid") != "42" {
		t.Fatalf("fid = %q", vals.Get("fid"))
	}
	form := fmt.Sprintf("fid=%s&time=%s", vals.Get("fid"), vals.Get("time"))
	want := fmt.Sprintf("%x", md5.Sum([]byte(form+"sekrit")))
	if vals.Get("sign") != want {
		t.Fatalf("sign = %q, want %q", vals.Get("sign"), want)
	}

	if profile.Nickname != "Saltpeter" || profile.Kingdom != 172 {
		t.Fatalf("profile = %+v", profile)
	}
	if profile.FurnaceDisplay != "FC 1-2" {
		t.Fatalf("furnace display = %q", profile.FurnaceDisplay)
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":1,"data":{},"msg":"role not exist","err_code":"40004"}`)
	}))
	defer srv.Close()

	c, err := NewClient(ClientOpts{Endpoint: srv.URL, Origin: "o", Secret: "s"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Lookup(context.Background(), "999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(ClientOpts{Endpoint: srv.URL, Origin: "o", Secret: "s"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Lookup(context.Background(), "1")
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Furnace display
// ---------------------------------------------------------------------------

func TestFurnaceDisplay(t *testing.T) {
	cases := []struct {
		lv   int64
		want string
	}{
		{1, "Level 1"},
		{30, "Level 30"},
		{31, "30-1"},
		{34, "30-4"},
		{35, "FC 1"},
		{36, "FC 1-1"},
		{39, "FC 1-4"},
		{40, "FC 2"},
		{84, "FC 10-4"},
		{85, "Level 85"},
	}
	for _, tc := range cases {
		if got := FurnaceDisplay(tc.lv); got != tc.want {
			t.Errorf("FurnaceDisplay(%d) = %q, want %q", tc.lv, got, tc.want)
		}
	}
}
