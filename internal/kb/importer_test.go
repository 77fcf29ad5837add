package kb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

const guideHTML = `<!DOCTYPE html>
<html><head><title>Connecting to the corporate VPN</title></head>
<body>
<nav>Home | Services | Contact</nav>
<article>
<h1>Connecting to the corporate VPN</h1>
<p>Download the VPN client from the software portal and install it on your laptop.
Open the client, enter vpn.powergrid.in as the gateway and sign in with your
network credentials. The VPN connects automatically after the first login.</p>
<p>If the VPN client reports a certificate error, restart the laptop and try
again. Persistent VPN failures should be reported to the Network Team with a
screenshot of the error message.</p>
<p>Remember that split tunnelling is disabled, so all traffic goes through the
VPN while you are connected.</p>
</article>
<footer>Copyright POWERGRID IT</footer>
</body></html>`

type memSaver struct {
	mu       sync.Mutex
	articles map[string]protocol.KBArticle
}

func (m *memSaver) SaveArticle(_ context.Context, a *protocol.KBArticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.articles == nil {
		m.articles = make(map[string]protocol.KBArticle)
	}
	m.articles[a.ID] = *a
	return nil
}

func TestImport_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(guideHTML))
	}))
	defer srv.Close()

	saver := &memSaver{}
	im := NewImporter(saver, nil)

	a, err := im.Import(context.Background(), srv.URL+"/guides/vpn", protocol.CategoryNetwork)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(a.Title, "VPN") {
		t.Errorf("title = %q", a.Title)
	}
	if !strings.Contains(a.Content, "split tunnelling") {
		t.Errorf("content missing body text: %q", a.Content)
	}
	if a.Category != protocol.CategoryNetwork {
		t.Errorf("category = %q", a.Category)
	}
	if len(a.Keywords) == 0 || a.Keywords[0] != "vpn" {
		t.Errorf("keywords = %v", a.Keywords)
	}
	if _, ok := saver.articles[a.ID]; !ok {
		t.Error("article not saved")
	}

	again, err := im.Import(context.Background(), srv.URL+"/guides/vpn", protocol.CategoryNetwork)
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if again.ID != a.ID || len(saver.articles) != 1 {
		t.Errorf("reimport should update in place, ids %s vs %s", again.ID, a.ID)
	}
}

func TestImport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpn.html")
	os.WriteFile(path, []byte(guideHTML), 0o644)

	a, err := NewImporter(&memSaver{}, nil).Import(context.Background(), path, protocol.CategoryNetwork)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if a.Content == "" {
		t.Error("empty content")
	}
}

func TestImport_Errors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	im := NewImporter(&memSaver{}, nil)
	ctx := context.Background()

	if _, err := im.Import(ctx, srv.URL, protocol.CategoryNetwork); err == nil {
		t.Error("expected error for 404")
	}
	if _, err := im.Import(ctx, "/nonexistent/page.html", protocol.CategoryNetwork); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := im.Import(ctx, srv.URL, "facilities"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("Reset your password: the password portal resets Outlook and VPN passwords", 3)
	want := []string{"password", "outlook", "passwords"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("keywords (-want +got):\n%s", diff)
	}
}
