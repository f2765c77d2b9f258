package protocol

// Port is the fixed controller listening port.
const Port = 17443

// Sentinel bodies returned by the controller itself instead of a fault.
// Clients must never retry a call that produced one of these.
const (
	BadSecretResponse      = "false: bad secret"
	InvalidRequestResponse = "false: invalid request"
)

// ErrorMarker prefixes application level failures in string results.
const ErrorMarker = "Error:"

// Remote operation names. Every operation takes the shared secret as its last argument.
const (
	MethodSetParameters      = "set_parameters"
	MethodUploadApp          = "upload_app"
	MethodGetAllPublicIPs    = "get_all_public_ips"
	MethodIsDoneInitializing = "is_done_initializing"
	MethodGetProperty        = "get_property"
	MethodSetProperty        = "set_property"
	MethodSetNodeReadOnly    = "set_node_read_only"
	MethodPrimaryDBIsUp      = "primary_db_is_up"
	MethodGetAppUploadStatus = "get_app_upload_status"
	MethodGetClusterStats    = "get_cluster_stats_json"
	MethodGetNodeStats       = "get_node_stats_json"
	MethodGetInstanceInfo    = "get_instance_info"
	MethodGetRequestInfo     = "get_request_info"
	MethodUpdateCron         = "update_cron"
)

// methodArity is the positional argument count per operation, secret included.
var methodArity = map[string]int{
	MethodSetParameters:      3,
	MethodUploadApp:          3,
	MethodGetAllPublicIPs:    1,
	MethodIsDoneInitializing: 1,
	MethodGetProperty:        2,
	MethodSetProperty:        3,
	MethodSetNodeReadOnly:    2,
	MethodPrimaryDBIsUp:      1,
	MethodGetAppUploadStatus: 2,
	MethodGetClusterStats:    1,
	MethodGetNodeStats:       1,
	MethodGetInstanceInfo:    1,
	MethodGetRequestInfo:     2,
	MethodUpdateCron:         2,
}

// Arity reports the argument count for method, secret included.
func Arity(method string) (int, bool) {
	n, ok := methodArity[method]
	return n, ok
}

// Methods lists the catalog in a stable order.
func Methods() []string {
	return []string{
		MethodSetParameters,
		MethodUploadApp,
		MethodGetAllPublicIPs,
		MethodIsDoneInitializing,
		MethodGetProperty,
		MethodSetProperty,
		MethodSetNodeReadOnly,
		MethodPrimaryDBIsUp,
		MethodGetAppUploadStatus,
		MethodGetClusterStats,
		MethodGetNodeStats,
		MethodGetInstanceInfo,
		MethodGetRequestInfo,
		MethodUpdateCron,
	}
}
