package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpshop/sharpshop/pkg/session"
)

func TestParse_FullDecision(t *testing.T) {
	raw := `{
		"tool": "search_shop_products",
		"args": {"query": "wired mouse"},
		"next_state": "browsing",
		"state_updates": {"product_id": "p1"}
	}`

	dec, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, ToolCatalogSearch, dec.Tool)
	assert.Equal(t, "wired mouse", dec.ArgString("query"))
	assert.Equal(t, session.StateBrowsing, dec.NextState)
	assert.Equal(t, "p1", dec.StateUpdates["product_id"])
}

func TestParse_NullFields(t *testing.T) {
	dec, err := Parse(`{"tool": null, "args": null, "next_state": null, "state_updates": null}`)
	require.NoError(t, err)
	assert.Equal(t, ToolNone, dec.Tool)
	assert.Empty(t, dec.Args)
	assert.Equal(t, session.State(""), dec.NextState)
}

func TestParse_CodeFences(t *testing.T) {
	raw := "```json\n{\"tool\": \"get_shop_info\"}\n```"

	dec, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, ToolShopInfo, dec.Tool)
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse(`{"tool": "search_shop_products"`)
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}

func TestParse_RejectsUnknownState(t *testing.T) {
	_, err := Parse(`{"tool": null, "next_state": "shipped"}`)
	assert.Error(t, err)
}

func TestParse_RejectsNonObjectArgs(t *testing.T) {
	_, err := Parse(`{"tool": "search_shop_products", "args": "wired"}`)
	assert.Error(t, err)
}

func TestTool_Known(t *testing.T) {
	for _, tool := range []Tool{
		ToolNone, ToolCatalogSearch, ToolAvailabilityCheck, ToolCreateOrder,
		ToolPaymentLinkCreate, ToolOrderStatusCheck, ToolShopInfo,
	} {
		assert.True(t, tool.Known(), "tool %q should be known", tool)
	}
	assert.False(t, Tool("delete_shop").Known())
}
