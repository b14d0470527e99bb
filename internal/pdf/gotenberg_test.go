package pdf

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConvertHTMLPostsIndexFile(t *testing.T) {
	var gotUser, gotBody, gotMargin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/chromium/convert/html" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotUser, _, _ = r.BasicAuth()
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		gotMargin = r.FormValue("marginTop")
		f, _, err := r.FormFile("files")
		if err != nil {
			t.Errorf("files part: %v", err)
			return
		}
		b, _ := io.ReadAll(f)
		gotBody = string(b)
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	client := NewGotenbergClient(srv.URL, "gotenberg", "secret")
	out, err := client.ConvertHTML(context.Background(), []byte("<h1>Presupuesto</h1>"), BudgetOpts())
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if string(out) != "%PDF-1.7" {
		t.Fatalf("unexpected body %q", out)
	}
	if gotUser != "gotenberg" {
		t.Errorf("basic auth not sent")
	}
	if gotMargin != "0.5" {
		t.Errorf("marginTop = %q", gotMargin)
	}
	if gotBody != "<h1>Presupuesto</h1>" {
		t.Errorf("index.html = %q", gotBody)
	}
}

func TestConvertHTMLReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewGotenbergClient(srv.URL, "", "").ConvertHTML(context.Background(), []byte("x"), BudgetOpts())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
}

func TestBudgetOptsSendNumberedFooter(t *testing.T) {
	var names []string
	var footer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		for _, fh := range r.MultipartForm.File["files"] {
			names = append(names, fh.Filename)
			if fh.Filename == "footer.html" {
				f, _ := fh.Open()
				b, _ := io.ReadAll(f)
				_ = f.Close()
				footer = string(b)
			}
		}
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	if _, err := NewGotenbergClient(srv.URL, "", "").ConvertHTML(context.Background(), []byte("<p>x</p>"), BudgetOpts()); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(names) != 2 || names[0] != "index.html" || names[1] != "footer.html" {
		t.Fatalf("files = %v", names)
	}
	if !strings.Contains(footer, `class="pageNumber"`) || !strings.Contains(footer, `class="totalPages"`) {
		t.Errorf("footer lacks page counters: %s", footer)
	}

	names = nil
	if _, err := NewGotenbergClient(srv.URL, "", "").ConvertHTML(context.Background(), []byte("<p>x</p>"), ConvertOpts{}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("files without footer = %v", names)
	}
}
