package rdx

import (
	"slices"
	"strings"
)

// SiteVector maps a site code to the greatest serial accepted from
// that site for one object. Entries never decrease.
type SiteVector map[string]string

func (sv SiteVector) Get(site string) string {
	return sv[site]
}

// Accept admits an operation with the given serial from the given
// site: it returns true and records the serial iff the site was never
// seen before or the serial is strictly greater than the recorded one.
// Operations without a serial or a site are never admitted.
func (sv SiteVector) Accept(site, serial string) bool {
	if site == "" || serial == "" {
		return false
	}
	pre, ok := sv[site]
	if ok && serial <= pre {
		return false
	}
	sv[site] = serial
	return true
}

func (sv SiteVector) Clone() SiteVector {
	cp := make(SiteVector, len(sv))
	for site, serial := range sv {
		cp[site] = serial
	}
	return cp
}

func (sv SiteVector) Sites() (sites []string) {
	for site := range sv {
		sites = append(sites, site)
	}
	slices.Sort(sites)
	return
}

func (sv SiteVector) String() string {
	sites := sv.Sites()
	pairs := make([]string, 0, len(sites))
	for _, site := range sites {
		pairs = append(pairs, site+"="+sv[site])
	}
	return strings.Join(pairs, ",")
}
