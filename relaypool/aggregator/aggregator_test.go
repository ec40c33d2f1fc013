package aggregator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func listServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCollectNormalizesAndDeduplicates(t *testing.T) {
	srcA := listServer(t, "1.1.1.1:80\n# comment\n\n2.2.2.2:8080\nsocks5://3.3.3.3:1080\n")
	srcB := listServer(t, "1.1.1.1:80\nnot a proxy line\n2.2.2.2:8080\n")

	agg := New([]Source{
		NewListSource("a", srcA.URL),
		NewListSource("b", srcB.URL),
	}, 0)

	got := agg.Collect(context.Background())
	want := []string{
		"http://1.1.1.1:80",
		"http://2.2.2.2:8080",
		"socks5://3.3.3.3:1080",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}
}

func TestCollectSurvivesFailingSources(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close() // connection refused from here on

	good := listServer(t, "4.4.4.4:3128\n")

	agg := New([]Source{
		NewListSource("bad", bad.URL),
		NewListSource("dead", dead.URL),
		NewListSource("good", good.URL),
	}, 0)

	got := agg.Collect(context.Background())
	want := []string{"http://4.4.4.4:3128"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}
}

func TestCollectCapsAfterSort(t *testing.T) {
	src := listServer(t, "9.9.9.9:80\n1.1.1.1:80\n5.5.5.5:80\n")

	agg := New([]Source{NewListSource("src", src.URL)}, 2)
	got := agg.Collect(context.Background())

	// Sorted before the cap, so truncation is deterministic.
	want := []string{"http://1.1.1.1:80", "http://5.5.5.5:80"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}
}

func TestTableSourceExtractsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table id="list"><tbody>
<tr><td>5.5.5.5</td><td>8080</td></tr>
<tr><td>6.6.6.6</td><td>3128</td></tr>
<tr><td></td><td>80</td></tr>
</tbody></table></body></html>`))
	}))
	t.Cleanup(srv.Close)

	src := NewTableSource("table", srv.URL, "table#list tr")
	lines, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() returned an error: %v", err)
	}

	want := []string{"5.5.5.5:8080", "6.6.6.6:3128"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Fetch() = %v, want %v", lines, want)
	}
}

func TestScriptSourceExtractsEmbeddedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><script>
const fpsList = [{"ip":"7.7.7.7","port":"8080"},{"ip":"8.8.8.8","port":"80"}];
</script></html>`))
	}))
	t.Cleanup(srv.Close)

	src := NewScriptSource("script", "fpsList", srv.URL+"/list")
	lines, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() returned an error: %v", err)
	}

	want := []string{"7.7.7.7:8080", "8.8.8.8:80"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Fetch() = %v, want %v", lines, want)
	}
}
