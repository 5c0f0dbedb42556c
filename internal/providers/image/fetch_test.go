package image

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studio/internal/infra"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cat.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), infra.NopLogger())
	ctx := context.Background()

	got, err := f.Fetch(ctx, srv.URL+"/cat.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.MIME != "image/png" || string(got.Data) != "png-bytes" || got.Filename != "cat.png" {
		t.Fatalf("got = %+v", got)
	}

	_, err = f.Fetch(ctx, srv.URL+"/page")
	if !errors.Is(err, ErrNotImage) {
		t.Fatalf("html err = %v", err)
	}

	_, err = f.Fetch(ctx, srv.URL+"/missing.png")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusNotFound || fe.Network {
		t.Fatalf("404 err = %v", err)
	}
}

func TestFetchNetworkFailureHint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := NewFetcher(nil, infra.NopLogger())
	_, err := f.Fetch(context.Background(), addr+"/x.png")
	var fe *FetchError
	if !errors.As(err, &fe) || !fe.Network {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "network or cross-origin policy") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestFetchRejectsBadURL(t *testing.T) {
	f := NewFetcher(nil, infra.NopLogger())
	for _, u := range []string{"", "ftp://x/y.png", "not a url", "file:///etc/passwd"} {
		if _, err := f.Fetch(context.Background(), u); !errors.Is(err, ErrBadURL) {
			t.Errorf("Fetch(%q) = %v", u, err)
		}
	}
}

func TestDecodeDataURL(t *testing.T) {
	img, err := DecodeDataURL("data:image/jpeg;base64,AQID")
	if err != nil {
		t.Fatal(err)
	}
	if img.MIME != "image/jpeg" || len(img.Data) != 3 {
		t.Fatalf("img = %+v", img)
	}
	if _, err := DecodeDataURL("data:text/plain;base64,AQID"); !errors.Is(err, ErrNotImage) {
		t.Fatalf("text err = %v", err)
	}
	if _, err := DecodeDataURL("data:image/png,raw"); !errors.Is(err, ErrBadURL) {
		t.Fatalf("raw err = %v", err)
	}

	f := NewFetcher(nil, infra.NopLogger())
	got, err := f.Load(context.Background(), "data:image/png;base64,AQID")
	if err != nil || got.Filename != "inline-image" {
		t.Fatalf("Load = %+v, %v", got, err)
	}
}
