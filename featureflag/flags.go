package featureflag

type Flag string

const (
	FlagDisableMeshUpload Flag = "DISABLE_MESH_UPLOAD"
	FlagDisableWebsocket  Flag = "DISABLE_WEBSOCKET"
	FlagEnableQueryTrace  Flag = "ENABLE_QUERY_TRACE"
)
