package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StateLoader = (*file.Loader)(nil)

func TestParse_AllFormatsAgree(t *testing.T) {
	for _, name := range []string{"app.yaml", "app.toml", "app.json"} {
		t.Run(name, func(t *testing.T) {
			doc, err := file.NewLoader(filepath.Join("testdata", name)).Document()
			require.NoError(t, err)

			assert.Equal(t, "shop", doc.Router.Name)
			assert.Equal(t, 5, doc.Router.HistoryLimit)
			assert.Equal(t, []string{"transition"}, doc.Router.Trace)
			assert.Equal(t, domain.WhenLazy, doc.Router.DefaultPolicy.When)

			decls, err := doc.Declarations()
			require.NoError(t, err)
			require.Len(t, decls, 5)

			products := decls[1]
			assert.True(t, products.Abstract)
			assert.Equal(t, "name", products.Params["sort"].Value)
			assert.Equal(t, "Products", products.Data["title"])
			require.Len(t, products.Resolve, 1)
			assert.Equal(t, "EUR", products.Resolve[0].Value)

			detail := decls[3]
			require.NotNil(t, detail.Params["tab"].Dynamic)
			assert.True(t, *detail.Params["tab"].Dynamic)
			assert.Equal(t, domain.WhenEager, detail.Resolve[0].Policy.When)
			assert.NotNil(t, detail.Resolve[0].Fn)
			assert.Equal(t, "ProductDetail", detail.Views["main"].Component)

			assert.Equal(t, "products.list", decls[4].RedirectTo)
		})
	}
}

func TestOpen_BuildsRouter(t *testing.T) {
	ctx := context.Background()
	opts, err := file.Open(filepath.Join("testdata", "app.yaml"))
	require.NoError(t, err)

	r, err := waypoint.New(ctx, opts...)
	require.NoError(t, err)
	defer r.Dispose()
	assert.Equal(t, "shop", r.Name)
	assert.True(t, r.Trace().Enabled(waypoint.TraceTransition))

	var productID, currency any
	r.OnSuccess(waypoint.HookCriteria{}, func(_ context.Context, tr *waypoint.Transition, _ *waypoint.StateNode) (any, error) {
		inj := tr.Injector(nil)
		productID, _ = inj.Get(domain.Named("productId"))
		currency, _ = inj.Get(domain.Named("currency"))
		return nil, nil
	})

	_, err = r.TransitionTo(ctx, "products.detail", waypoint.Values{"id": 9})
	require.NoError(t, err)
	assert.Equal(t, 9, productID)
	assert.Equal(t, "EUR", currency)
	assert.Equal(t, "info", r.Params()["tab"])

	tr, err := r.TransitionTo(ctx, "catalog", nil)
	require.NoError(t, err)
	assert.Equal(t, "products.list", tr.To().Name)
}

func TestParse_Errors(t *testing.T) {
	_, err := file.Parse([]byte("states: [{name: a, bogus: 1}]"), file.FormatYAML)
	assert.ErrorContains(t, err, "bogus")

	_, err = file.Parse([]byte("{"), file.FormatJSON)
	assert.Error(t, err)

	doc, err := file.Parse([]byte("states: [{url: /x}]"), file.FormatYAML)
	require.NoError(t, err)
	_, err = doc.Declarations()
	assert.ErrorContains(t, err, "missing name")

	doc, err = file.Parse([]byte("router: {trace: [everything]}"), file.FormatYAML)
	require.NoError(t, err)
	_, err = doc.Router.Options()
	assert.ErrorContains(t, err, "unknown trace category")

	doc, err = file.Parse([]byte("router: {default_policy: {when: SOMETIMES}}"), file.FormatYAML)
	require.NoError(t, err)
	_, err = doc.Router.Options()
	assert.ErrorContains(t, err, "SOMETIMES")
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := file.NewLoader(filepath.Join(t.TempDir(), "none.yaml")).Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, file.FormatTOML, file.FormatOf("a.TOML"))
	assert.Equal(t, file.FormatJSON, file.FormatOf("a.json"))
	assert.Equal(t, file.FormatYAML, file.FormatOf("a.yml"))
}
