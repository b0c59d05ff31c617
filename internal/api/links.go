package api

import "github.com/joeblew999/kochizu/internal/humastar"

// Links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var Links = humastar.Links{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/modes>; rel="modes"`,
		`</api/v1/slider>; rel="slider"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/modes>; rel="modes"`,
	},
	"/api/v1/modes": {
		`</api/v1/resolve>; rel="resolve"`,
		`</api/v1/catalogs/reload>; rel="reload"`,
	},
	"/api/v1/resolve": {
		`</api/v1/modes>; rel="modes"`,
		`</api/v1/slider>; rel="slider"`,
	},
	"/api/v1/slider": {
		`</api/v1/resolve>; rel="resolve"`,
	},
	"/api/v1/search": {
		`</api/v1/place>; rel="place"`,
	},
	"/api/v1/place": {
		`</api/v1/address>; rel="address"`,
		`</api/v1/elevation>; rel="elevation"`,
	},
	"/api/v1/spots": {
		`</api/v1/tables>; rel="tables"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}
