package services

import (
	"context"

	"github.com/eclypsed/lazuli/internal/shared"
)

// splitShelf separates a shelf's entries from its continuation token.
//
// Newer responses end the entry list with a continuationItemRenderer; older ones carry nextContinuationData beside it.
func splitShelf(sh *ytShelf) ([]ytShelfItem, string) {
	entries := sh.entries()
	token := legacyToken(sh.Continuations)
	return splitTrailing(entries, token)
}

func splitTrailing(entries []ytShelfItem, token string) ([]ytShelfItem, string) {
	if n := len(entries); n > 0 && entries[n-1].ContinuationItemRenderer != nil {
		if t := entries[n-1].ContinuationItemRenderer.ContinuationEndpoint.ContinuationCommand.Token; t != "" {
			token = t
		}
		entries = entries[:n-1]
	}
	return entries, token
}

// continuationPage reads the entries and next token of a follow-up page in either response style.
// A page without a token is the last one.
func continuationPage(resp *ytResponse, endpoint string) ([]ytShelfItem, string, error) {
	if cc := resp.ContinuationContents; cc != nil {
		for _, sh := range []*ytShelf{cc.MusicShelfContinuation, cc.MusicPlaylistShelfContinuation, cc.GridContinuation} {
			if sh != nil {
				entries, token := splitShelf(sh)
				return entries, token, nil
			}
		}
	}
	for _, action := range resp.OnResponseReceivedActions {
		if action.AppendContinuationItemsAction != nil {
			entries, token := splitTrailing(action.AppendContinuationItemsAction.ContinuationItems, "")
			return entries, token, nil
		}
	}
	return nil, "", shared.ShapeError(endpoint, "continuationContents")
}

// drain follows a shelf's continuation chain page by page until it ends or enough reports true.
//
// Pages are fetched strictly in sequence: each token is only known once the previous page arrives.
func (c *ytClient) drain(ctx context.Context, first *ytShelf, enough func([]ytShelfItem) bool) ([]ytShelfItem, error) {
	items, token := splitShelf(first)
	for token != "" {
		if enough != nil && enough(items) {
			break
		}
		resp, err := c.next(ctx, token)
		if err != nil {
			return nil, err
		}
		page, next, err := continuationPage(resp, c.endpoints.Music+"/browse")
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		token = next
	}
	return items, nil
}
