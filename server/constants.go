package server

import "github.com/dotside-studios/tagstation/buildinfo"

// mDNS service discovery constants
var (
	MDNSServiceType = "_tagstation._tcp"
	MDNSServiceName = buildinfo.DisplayName
	MDNSDomain      = "local."
)

// API v1 routes
const (
	RouteHealth      = "/api/v1/health"
	RouteReaders     = "/api/v1/readers"
	RouteConfig      = "/api/v1/config"
	RouteLastResult  = "/api/v1/results/last"
	RouteResultByUID = "/api/v1/results/{uid}"
	RouteWebSocket   = "/ws"
)

// CORS configuration
const (
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "GET, PUT, OPTIONS"
	CORSAllowHeaders = "Content-Type, Authorization"
)
