package directory

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const issuerPath = "/auth/realms/redhat-external"

// unsignedToken builds an HS256 token; only its claims are read when no
// public key is configured.
func unsignedToken(t *testing.T, issuer string, audience ...string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Audience: jwt.ClaimStrings(audience),
		// Offline tokens are used long after their nominal expiry.
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type directoryServer struct {
	*httptest.Server
	tokenCalls   int32
	clusterCalls int32
	clusters     []clusterItem
	refreshToken string
	clientID     string
	bearer       string
	tokenStatus  int
}

func newDirectoryServer(t *testing.T, clusters []clusterItem) *directoryServer {
	t.Helper()
	ds := &directoryServer{clusters: clusters, tokenStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc(issuerPath+"/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ds.tokenCalls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("unexpected grant_type %q", r.Form.Get("grant_type"))
		}
		ds.refreshToken = r.Form.Get("refresh_token")
		ds.clientID = r.Form.Get("client_id")
		if ds.tokenStatus != http.StatusOK {
			http.Error(w, `{"error":"invalid_grant"}`, ds.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":900}`))
	})
	mux.HandleFunc(clustersPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ds.clusterCalls, 1)
		ds.bearer = r.Header.Get("Authorization")
		if ds.bearer != "Bearer access-123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		start := (page - 1) * size
		end := start + size
		if start > len(ds.clusters) {
			start = len(ds.clusters)
		}
		if end > len(ds.clusters) {
			end = len(ds.clusters)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(clusterList{
			Kind:  "ClusterList",
			Page:  page,
			Size:  end - start,
			Total: len(ds.clusters),
			Items: ds.clusters[start:end],
		})
	})

	ds.Server = httptest.NewServer(mux)
	t.Cleanup(ds.Close)
	return ds
}

func (ds *directoryServer) issuer() string {
	return ds.URL + issuerPath
}

func TestSearchClustersExchangesTokenAndPages(t *testing.T) {
	var items []clusterItem
	for i := 0; i < 5; i++ {
		items = append(items, clusterItem{
			ID:                fmt.Sprintf("id-%d", i),
			Name:              fmt.Sprintf("cluster-%d", i),
			ExternalID:        fmt.Sprintf("ext-%d", i),
			CreationTimestamp: "2020-01-01T00:00:00.123456Z",
		})
	}
	ds := newDirectoryServer(t, items)
	raw := unsignedToken(t, ds.issuer(), "cloud-services")

	client, err := NewClient(context.Background(), Options{URL: ds.URL, Token: raw, PageSize: 2})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	clusters, err := client.SearchClusters(context.Background(), "name like 'cluster-%'")
	if err != nil {
		t.Fatalf("SearchClusters failed: %v", err)
	}

	if len(clusters) != 5 {
		t.Fatalf("expected 5 clusters, got %d", len(clusters))
	}
	for i, c := range clusters {
		if c.Name != fmt.Sprintf("cluster-%d", i) {
			t.Fatalf("expected directory order, got %q at %d", c.Name, i)
		}
	}
	want := time.Date(2020, 1, 1, 0, 0, 0, 123456000, time.UTC)
	if !clusters[0].CreationTimestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, clusters[0].CreationTimestamp)
	}
	if got := atomic.LoadInt32(&ds.clusterCalls); got != 3 {
		t.Fatalf("expected 3 page requests, got %d", got)
	}
	if got := atomic.LoadInt32(&ds.tokenCalls); got != 1 {
		t.Fatalf("expected a single token exchange, got %d", got)
	}
	if ds.refreshToken != raw || ds.clientID != "cloud-services" {
		t.Fatalf("unexpected exchange params: client_id=%q", ds.clientID)
	}

	if _, err := client.SearchClusters(context.Background(), "x"); err != nil {
		t.Fatalf("second search failed: %v", err)
	}
	if got := atomic.LoadInt32(&ds.tokenCalls); got != 1 {
		t.Fatalf("expected access token reuse, got %d exchanges", got)
	}
}

func TestSearchClustersSkipsMissingExternalID(t *testing.T) {
	ds := newDirectoryServer(t, []clusterItem{
		{ID: "1", Name: "a", ExternalID: "ext-a", CreationTimestamp: "2020-01-01T00:00:00Z"},
		{ID: "2", Name: "pending"},
		{ID: "3", Name: "b", ExternalID: "ext-b"},
	})

	client, err := NewClient(context.Background(), Options{URL: ds.URL, Token: unsignedToken(t, ds.issuer(), "cloud-services")})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	clusters, err := client.SearchClusters(context.Background(), "")
	if err != nil {
		t.Fatalf("SearchClusters failed: %v", err)
	}
	if len(clusters) != 2 || clusters[0].Name != "a" || clusters[1].Name != "b" {
		t.Fatalf("unexpected clusters: %+v", clusters)
	}
	if !clusters[1].CreationTimestamp.IsZero() {
		t.Fatal("expected zero creation time when the directory omits it")
	}
}

func TestSearchClustersTokenExchangeFailure(t *testing.T) {
	ds := newDirectoryServer(t, nil)
	ds.tokenStatus = http.StatusBadRequest

	client, err := NewClient(context.Background(), Options{URL: ds.URL, Token: unsignedToken(t, ds.issuer(), "cloud-services")})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	_, err = client.SearchClusters(context.Background(), "")
	if !errors.Is(err, ErrTokenExchange) {
		t.Fatalf("expected ErrTokenExchange, got %v", err)
	}
	if got := atomic.LoadInt32(&ds.clusterCalls); got != 0 {
		t.Fatalf("expected no cluster requests, got %d", got)
	}
}

func TestSearchClustersHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == clustersPath {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"x","token_type":"Bearer"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), Options{URL: srv.URL, Token: unsignedToken(t, srv.URL, "cloud-services")})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	_, err = client.SearchClusters(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatalf("did not expect ErrUnauthorized for a 500: %v", err)
	}
}

func TestParseOfflineTokenUnverified(t *testing.T) {
	tok, err := ParseOfflineToken(unsignedToken(t, "https://sso.example.com/auth/realms/x/", "cli"), "", nil)
	if err != nil {
		t.Fatalf("ParseOfflineToken failed: %v", err)
	}
	if tok.Verified {
		t.Fatal("expected unverified token")
	}
	if tok.ClientID != "cli" {
		t.Fatalf("expected client id from aud, got %q", tok.ClientID)
	}
	if got := tok.TokenURL(); got != "https://sso.example.com/auth/realms/x/protocol/openid-connect/token" {
		t.Fatalf("unexpected token url %q", got)
	}
}

func TestParseOfflineTokenRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"not_a_jwt":   "abc.def",
		"missing_iss": unsignedToken(t, "", "cloud-services"),
		"missing_aud": unsignedToken(t, "https://sso.example.com"),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseOfflineToken(raw, "", nil); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestParseOfflineTokenVerified(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	publicPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	sign := func(audience string) string {
		claims := jwt.RegisteredClaims{
			Issuer:    "https://sso.example.com",
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}

	tok, err := ParseOfflineToken(sign(TokenAudience), publicPEM, nil)
	if err != nil {
		t.Fatalf("expected expired but correctly signed token to verify: %v", err)
	}
	if !tok.Verified || tok.ClientID != TokenAudience {
		t.Fatalf("unexpected token: %+v", tok)
	}

	if _, err := ParseOfflineToken(sign("someone-else"), publicPEM, nil); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}

	if _, err := ParseOfflineToken(unsignedToken(t, "https://sso.example.com", TokenAudience), publicPEM, nil); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected HS256 token to be rejected, got %v", err)
	}

	if _, err := ParseOfflineToken(sign(TokenAudience), "not a key", nil); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected bad public key to fail, got %v", err)
	}
}
