package daemon

import "github.com/dnr/segstore/store"

var (
	// protocol is json over http over unix socket (tcp for tests)
	Socket        = "segstore.sock"
	CreatePath    = "/create"
	RemovePath    = "/remove"
	ListPath      = "/list"
	ReadPath      = "/read"
	WritePath     = "/write"
	TrimPath      = "/trim"
	ConfigurePath = "/configure"
	StatsPath     = "/stats"
	DebugPath     = "/debug"
	MapPath       = "/map"
	UnmapPath     = "/unmap"
	FaultPath     = "/fault"
)

type (
	CreateReq struct {
		Name      string
		Kind      string // "cache", "pages", "scatter"
		Quantum   int64  // cache kind only
		Qset      int64
		Order     int
		MaxBlocks int64
	}

	RemoveReq struct {
		Name string
	}

	ListReq struct {
	}
	ListResp struct {
		Devices []DeviceInfo
	}

	DeviceInfo struct {
		Name     string
		Kind     string
		Quantum  int64
		Qset     int64
		Order    int
		Size     int64
		Mappings int32
	}

	ReadReq struct {
		Name   string
		Offset int64
		Length int64
	}
	ReadResp struct {
		// Data may be shorter than Length: the read stopped at the device
		// size or at a hole.
		Data []byte
	}

	WriteReq struct {
		Name   string
		Offset int64
		Data   []byte
	}
	WriteResp struct {
		Written int64
		Size    int64
	}

	TrimReq struct {
		Name string
	}

	// ConfigureReq trims the device and installs a new shape; refused
	// while mapped, like trim.
	ConfigureReq struct {
		Name      string
		Kind      string
		Quantum   int64
		Qset      int64
		Order     int
		MaxBlocks int64
	}

	StatsReq struct {
		Name string
	}
	StatsResp struct {
		Info  DeviceInfo
		Stats store.Stats
	}

	DebugReq struct {
	}
	DebugResp struct {
		Devices []DebugDevice
	}
	DebugDevice struct {
		Info DeviceInfo
		// SegmentFill has one entry per live segment: how many of its
		// qset slots hold a block.
		SegmentFill []int
		Stats       store.Stats
	}

	MapReq struct {
		Name string
	}
	MapResp struct {
		MappingId int64
	}

	UnmapReq struct {
		Name      string
		MappingId int64
	}

	FaultReq struct {
		Name      string
		MappingId int64
		Offset    int64
	}
	FaultResp struct {
		// Data is the full backing page containing Offset.
		Data []byte
		Refs int64
	}

	Status struct {
		Success bool
		Error   string
	}
)
