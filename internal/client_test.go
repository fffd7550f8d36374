package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iksnae/convo-console/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, api *testutil.FakeAPI, key string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.APIBaseURL = api.URL()
	cfg.APIKey = key
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg)
}

func TestClient_ListConversations(t *testing.T) {
	api := testutil.NewFakeAPI(t, "sk-test")
	api.AddConversation("c1", "Sunset over mountains", 3)
	api.AddConversation("c2", "Cat astronaut", 5)
	api.AddConversation("c3", "Mountain lake", 1)
	client := newTestClient(t, api, "sk-test")

	list, err := client.ListConversations(context.Background(), ListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 3, list.Total)
	assert.True(t, list.HasNextPage())

	list, err = client.ListConversations(context.Background(), ListOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
	assert.False(t, list.HasNextPage())

	list, err = client.ListConversations(context.Background(), ListOptions{Query: "mountain"})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)

	list, err = client.ListConversations(context.Background(), ListOptions{UserID: "visitor-c2"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "c2", list.Items[0].ID)
	assert.Equal(t, 5, list.Items[0].MessageCount)
}

func TestClient_GetConversationAndPages(t *testing.T) {
	api := testutil.NewFakeAPI(t, "sk-test")
	api.AddConversation("c1", "Sunset", 12)
	client := newTestClient(t, api, "sk-test")

	detail, err := client.GetConversation(context.Background(), "c1", 5)
	require.NoError(t, err)
	assert.Equal(t, "Sunset", detail.Title)
	assert.Len(t, detail.Messages, 5)
	assert.Equal(t, 12, detail.Total)
	assert.Equal(t, 1, detail.Page)
	assert.Equal(t, RoleUser, detail.Messages[0].Role)

	page, err := client.FetchMessagePage(context.Background(), "c1", 3, 5)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "c1-11", page.Messages[0].ID)
}

func TestClient_NotFound(t *testing.T) {
	api := testutil.NewFakeAPI(t, "sk-test")
	client := newTestClient(t, api, "sk-test")

	_, err := client.GetConversation(context.Background(), "missing", 5)
	assert.ErrorIs(t, err, ErrNotFound)

	err = client.DeleteConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_MissingKey(t *testing.T) {
	api := testutil.NewFakeAPI(t, "sk-test")
	client := newTestClient(t, api, "")

	_, err := client.ListConversations(context.Background(), ListOptions{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Empty(t, api.Requests(), "no request is sent without a key")
}

func TestClient_WrongKey(t *testing.T) {
	api := testutil.NewFakeAPI(t, "sk-test")
	client := newTestClient(t, api, "sk-wrong")

	_, err := client.ListConversations(context.Background(), ListOptions{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.Status)
}

func TestClient_ServerErrorAndMalformed(t *testing.T) {
	api := testutil.NewFakeAPI(t, "sk-test")
	api.AddConversation("c1", "Sunset", 10)
	api.FailPage(2, 1)
	api.MalformPage(3)
	client := newTestClient(t, api, "sk-test")

	_, err := client.FetchMessagePage(context.Background(), "c1", 2, 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.Status)

	_, err = client.FetchMessagePage(context.Background(), "c1", 3, 5)
	var malformed *MalformedResponseError
	assert.True(t, errors.As(err, &malformed))
}

func TestClient_DeleteAndPing(t *testing.T) {
	api := testutil.NewFakeAPI(t, "sk-test")
	api.AddConversation("c1", "Sunset", 1)
	client := newTestClient(t, api, "sk-test")

	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.DeleteConversation(context.Background(), "c1"))

	list, err := client.ListConversations(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestLoader_AgainstFakeAPI(t *testing.T) {
	api := testutil.NewFakeAPI(t, "sk-test")
	api.AddConversation("c1", "Sunset", 23)
	api.SetOverlap(2)
	api.FailPage(3, 1)
	client := newTestClient(t, api, "sk-test")

	loader, err := OpenConversation(context.Background(), client, "c1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, loader.Len())

	_, err = loader.RequestNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, loader.Len(), "overlapping records are dropped")

	_, err = loader.RequestNextPage(context.Background())
	require.ErrorIs(t, err, ErrLoadMoreFailed)
	assert.Equal(t, 20, loader.Len())
	assert.Equal(t, 2, loader.CurrentPage())

	added, err := loader.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 23, loader.Len())
	assert.False(t, loader.HasMore())
	assert.Equal(t, 3, api.CountRequests("/api/admin/conversations/c1/messages"))
}
