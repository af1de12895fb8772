package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	l, err := New("")
	require.NoError(t, err)
	assert.IsType(t, CommunityLimiter{}, l)
	assert.True(t, l.CanCreateTemplate(context.Background(), uuid.Nil))
	assert.Equal(t, Unlimited, l.GetLimitsInfo(context.Background(), uuid.Nil).TemplatesRemains)

	l, err = New("http://limiter.local")
	require.NoError(t, err)
	assert.IsType(t, &ExternalLimiter{}, l)
}

func TestExternalLimiter(t *testing.T) {
	allowed := uuid.Must(uuid.NewV4())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, allowed.String()) {
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/remain/") {
			w.Header().Set("X-Entity-Remain", "3")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, l.CanCreateTemplate(ctx, allowed))
	assert.True(t, l.CanUploadImage(ctx, allowed))
	assert.Equal(t, 3, l.GetRemainingTemplates(ctx, allowed))

	other := uuid.Must(uuid.NewV4())
	assert.False(t, l.CanCreateTemplate(ctx, other))
	assert.Equal(t, -1, l.GetRemainingTemplates(ctx, other))
}
