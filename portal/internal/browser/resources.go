package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources intercepts requests on page and fails those whose resource
// type is listed (images, fonts, media, stylesheets). The returned router
// must be stopped when the tab closes.
func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	blockSet := make(map[proto.NetworkResourceType]bool, len(types))
	for _, t := range types {
		if rt, ok := resourceTypes[strings.ToLower(strings.TrimSpace(t))]; ok {
			blockSet[rt] = true
		}
	}
	if len(blockSet) == 0 {
		return nil
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if blockSet[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return router
}

// resourceTypes maps config names (plural or CDP spelling) to CDP types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"image":       proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"font":        proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
	"stylesheet":  proto.NetworkResourceTypeStylesheet,
}
