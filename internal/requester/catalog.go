package requester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Catalog is the client for the folder/world catalog API. Payloads stay
// opaque to this layer; callers decode the JSON they care about.
type Catalog struct {
	requester *HTTPRequester
}

// NewCatalog creates a catalog client on top of the requester.
func NewCatalog(requester *HTTPRequester) *Catalog {
	return &Catalog{requester: requester}
}

// formatFolderID pads folder identifiers to the API's fixed 8-digit form.
func formatFolderID(folderID string) string {
	for len(folderID) < 8 {
		folderID = "0" + folderID
	}
	return folderID
}

func (c *Catalog) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, path, nil)
}

func (c *Catalog) call(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	resp, err := c.requester.Do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

// Folders lists the caller's folders.
func (c *Catalog) Folders(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/v2/folders")
}

// FolderItems lists the items of one folder.
func (c *Catalog) FolderItems(ctx context.Context, folderID string) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/v2/folders/%s/items", formatFolderID(folderID)))
}

// CreateFolder creates a folder from the given payload.
func (c *Catalog) CreateFolder(ctx context.Context, folder interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/v2/folders", folder)
}

// UpdateFolder replaces a folder's metadata.
func (c *Catalog) UpdateFolder(ctx context.Context, folderID string, folder interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPut, fmt.Sprintf("/v2/folders/%s", formatFolderID(folderID)), folder)
}

// DeleteFolder removes a folder.
func (c *Catalog) DeleteFolder(ctx context.Context, folderID string) error {
	_, err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/v2/folders/%s", formatFolderID(folderID)), nil)
	return err
}

// AddWorldToFolder files a world into a folder.
func (c *Catalog) AddWorldToFolder(ctx context.Context, folderID string, world interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/v2/folders/%s/items", formatFolderID(folderID)), world)
}

// RemoveWorldFromFolder takes a world out of a folder.
func (c *Catalog) RemoveWorldFromFolder(ctx context.Context, folderID, worldID string) error {
	_, err := c.call(ctx, http.MethodDelete,
		fmt.Sprintf("/v2/folders/%s/items/%s", formatFolderID(folderID), worldID), nil)
	return err
}

// UpdateWorldComment sets the caller's comment on a filed world.
func (c *Catalog) UpdateWorldComment(ctx context.Context, folderID, worldID, comment string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPut,
		fmt.Sprintf("/v2/folders/%s/items/%s", formatFolderID(folderID), worldID),
		map[string]string{"comment": comment})
}

// World fetches one world record.
func (c *Catalog) World(ctx context.Context, worldID string) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/v2/worlds/%s", worldID))
}

// CreateWorld adds a world to the master catalog.
func (c *Catalog) CreateWorld(ctx context.Context, world interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/v2/worlds", world)
}

// UpdateWorld replaces a world record.
func (c *Catalog) UpdateWorld(ctx context.Context, worldID string, world interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPut, fmt.Sprintf("/v2/worlds/%s", worldID), world)
}

// DeleteWorld removes a world record.
func (c *Catalog) DeleteWorld(ctx context.Context, worldID string) error {
	_, err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/v2/worlds/%s", worldID), nil)
	return err
}

// SearchWorlds runs a paginated world search.
func (c *Catalog) SearchWorlds(ctx context.Context, query string, page, limit int) (json.RawMessage, error) {
	params := url.Values{
		"q":     {query},
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
	return c.get(ctx, "/v2/worlds/search?"+params.Encode())
}

// Favorites lists the caller's favorite folders.
func (c *Catalog) Favorites(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/v2/favorites")
}

// AddFavorite marks a folder as favorite.
func (c *Catalog) AddFavorite(ctx context.Context, folderID int) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/v2/favorites", map[string]int{"folder_id": folderID})
}

// RemoveFavorite unmarks a favorite folder.
func (c *Catalog) RemoveFavorite(ctx context.Context, folderID int) error {
	_, err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/v2/favorites/%d", folderID), nil)
	return err
}

// Profile fetches the caller's profile.
func (c *Catalog) Profile(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/v2/profile")
}

// UpdateProfile stores the caller's profile.
func (c *Catalog) UpdateProfile(ctx context.Context, profile interface{}) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, "/v2/profile", profile)
}
