package server

// Route path constants
const (
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	RouteAPI         = "/api"
	RouteDevices     = "/devices"
	RouteDevice      = "/devices/{deviceID}"
	RouteOpenDoor    = "/devices/{deviceID}/doors/{doorKey}/open"
	RouteRefresh     = "/refresh"
	RouteStatus      = "/status"
	ParamDeviceID    = "deviceID"
	ParamDoorKey     = "doorKey"
	QueryWaitRefresh = "wait"
)
