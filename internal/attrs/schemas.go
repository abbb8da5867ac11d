package attrs

// Attribute name constants, referenced throughout internal/resource,
// internal/group, and internal/engine so a typo becomes a compile error
// instead of a silent Get miss.
const (
	Group                  = "Group"
	Enabled                = "Enabled"
	StartProgram           = "StartProgram"
	StopProgram            = "StopProgram"
	MonitorProgram         = "MonitorProgram"
	FaultPropagation       = "FaultPropagation"
	OnlineRetryLimit       = "OnlineRetryLimit"
	RestartLimit           = "RestartLimit"
	MonitorOnly            = "MonitorOnly"
	MonitorInterval        = "MonitorInterval"
	OfflineMonitorInterval = "OfflineMonitorInterval"
	OnlineTimeout          = "OnlineTimeout"
	OfflineTimeout         = "OfflineTimeout"
	MonitorTimeout         = "MonitorTimeout"
	AutoStart              = "AutoStart"

	SystemList     = "SystemList"
	Parallel       = "Parallel"
	Load           = "Load"
	IgnoreDisabled = "IgnoreDisabled"

	ResourceLimit = "ResourceLimit"
	ClusterName   = "ClusterName"
	NodeName      = "NodeName"
	NodeList      = "NodeList"
	GroupLimit    = "GroupLimit"
	BackupInterval = "BackupInterval"

	AlertLevel      = "AlertLevel"
	AlertRecipients = "AlertRecipients"
)

// ResourceSchema is the attribute table for every Resource.
var ResourceSchema = Schema{
	{Name: Group, Default: "none", Type: TypeString, Required: true},
	{Name: Enabled, Default: false, Type: TypeBool},
	{Name: StartProgram, Default: "", Type: TypeString},
	{Name: StopProgram, Default: "", Type: TypeString},
	{Name: MonitorProgram, Default: "", Type: TypeString},
	{Name: FaultPropagation, Default: false, Type: TypeBool},
	{Name: OnlineRetryLimit, Default: 0, Type: TypeInt},
	{
		Name:        RestartLimit,
		Default:     3,
		Type:        TypeInt,
		Description: "Number of times to retry bringing the resource online when it is taken offline unexpectedly before declaring it faulted",
	},
	{Name: MonitorOnly, Default: false, Type: TypeBool},
	{Name: MonitorInterval, Default: 55, Type: TypeInt},
	{Name: OfflineMonitorInterval, Default: 55, Type: TypeInt},
	{
		Name:        OnlineTimeout,
		Default:     60,
		Type:        TypeInt,
		Description: "Maximum time (in seconds) within which the online function must complete or else be terminated",
	},
	{
		Name:        OfflineTimeout,
		Default:     60,
		Type:        TypeInt,
		Description: "Maximum time (in seconds) within which the offline function must complete or else be terminated",
	},
	{
		Name:        MonitorTimeout,
		Default:     60,
		Type:        TypeInt,
		Description: "Maximum time (in seconds) within which the monitor function must complete or else be terminated",
	},
	{Name: AutoStart, Default: true, Type: TypeBool},
}

// GroupSchema is the attribute table for every Group. SystemList
// carries the set of node names eligible to host the group, the input
// to cluster placement.
var GroupSchema = Schema{
	{Name: Enabled, Default: false, Type: TypeBool},
	{Name: AutoStart, Default: false, Type: TypeBool, Description: "Bring the group online automatically at node startup"},
	{Name: SystemList, Default: []string{}, Type: TypeList, Description: "Nodes eligible to host this group"},
	{
		Name:        Parallel,
		Default:     false,
		Type:        TypeBool,
		Description: "Whether the group may be ONLINE on more than one system in SystemList simultaneously",
	},
	{
		Name:        Load,
		Default:     0,
		Type:        TypeInt,
		Description: "Weight summed per node at group-online placement time to pick the least-loaded eligible node",
	},
	{
		Name:        IgnoreDisabled,
		Default:     false,
		Type:        TypeBool,
		Description: "Exclude Enabled=false members from the group's aggregate state computation",
	},
}

// SystemSchema is the attribute table for the node's own system-wide
// attributes.
var SystemSchema = Schema{
	{
		Name:        ResourceLimit,
		Default:     5000,
		Type:        TypeInt,
		Description: "Maximum number of resources",
	},
	{
		Name:        GroupLimit,
		Default:     256,
		Type:        TypeInt,
		Description: "Maximum number of groups",
	},
	{Name: ClusterName, Default: "", Type: TypeString},
	{Name: NodeName, Default: "", Type: TypeString},
	{Name: NodeList, Default: []string{}, Type: TypeList, Description: "Every node name known to the cluster, including this one"},
	{
		Name:        BackupInterval,
		Default:     5,
		Type:        TypeInt,
		Description: "Minutes between config backups. Nothing reads this attribute: the config persister runs on a fixed 30-second interval set in cmd/icsd",
	},
}
