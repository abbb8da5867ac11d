package rpc

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Envelope is the sole message type carried over the wire. Method names
// match the engine's operation names exactly (ping, res_online,
// clus_grp_online, ...); Args is the JSON encoding of the method's
// argument struct.
type Envelope struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// newCorrelationID returns a short, log-friendly request identifier: a
// UUIDv4 rendered as base58 instead of the usual hyphenated hex, so it
// reads as one compact token in a log line.
func newCorrelationID() string {
	return base58.Encode(uuid.New()[:])
}

func encodeArgs(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// Method name constants.
const (
	MethodPing       = "ping"
	MethodAddNode    = "add_node"
	MethodDeleteNode = "delete_node"
	MethodNodeList   = "node_list"
	MethodNodeAttr   = "node_attr"
	MethodNodeValue  = "node_value"
	MethodNodeModify = "node_modify"

	MethodResAdd       = "res_add"
	MethodResDelete    = "res_delete"
	MethodResOnline    = "res_online"
	MethodResOffline   = "res_offline"
	MethodResState     = "res_state"
	MethodResStateMany = "res_state_many"
	MethodResLink      = "res_link"
	MethodResUnlink    = "res_unlink"
	MethodResClear     = "res_clear"
	MethodResProbe     = "res_probe"
	MethodResDep       = "res_dep"
	MethodResList      = "res_list"
	MethodResValue     = "res_value"
	MethodResModify    = "res_modify"
	MethodResAttr      = "res_attr"

	MethodGrpAdd             = "grp_add"
	MethodGrpDelete          = "grp_delete"
	MethodGrpOnline          = "grp_online"
	MethodGrpOffline         = "grp_offline"
	MethodGrpState           = "grp_state"
	MethodGrpEnable          = "grp_enable"
	MethodGrpDisable         = "grp_disable"
	MethodGrpEnableResources = "grp_enable_resources"
	MethodGrpDisableResources = "grp_disable_resources"
	MethodGrpFlush           = "grp_flush"
	MethodGrpClear           = "grp_clear"
	MethodGrpResources       = "grp_resources"
	MethodGrpList            = "grp_list"
	MethodGrpValue           = "grp_value"
	MethodGrpModify          = "grp_modify"
	MethodGrpAttr            = "grp_attr"

	MethodClusResOnline    = "clus_res_online"
	MethodClusResOffline   = "clus_res_offline"
	MethodClusResAdd       = "clus_res_add"
	MethodClusResDelete    = "clus_res_delete"
	MethodClusResLink      = "clus_res_link"
	MethodClusResUnlink    = "clus_res_unlink"
	MethodClusResClear     = "clus_res_clear"
	MethodClusResModify    = "clus_res_modify"
	MethodClusResStateMany = "clus_res_state_many"

	MethodClusGrpOnline    = "clus_grp_online"
	MethodClusGrpOffline   = "clus_grp_offline"
	MethodClusGrpAdd       = "clus_grp_add"
	MethodClusGrpDelete    = "clus_grp_delete"
	MethodClusGrpEnable    = "clus_grp_enable"
	MethodClusGrpDisable   = "clus_grp_disable"
	MethodClusGrpModify    = "clus_grp_modify"
	MethodClusGrpStateMany = "clus_grp_state_many"
	MethodClusGrpState     = "clus_grp_state"

	MethodDump           = "dump"
	MethodLoad           = "load"
	MethodClusLoad       = "clus_load"
	MethodLogCommand     = "log_command"
	MethodClusLogCommand = "clus_log_command"
	MethodSetLogLevel    = "set_log_level"

	MethodAlertAddRecipient    = "add_recipient"
	MethodAlertRemoveRecipient = "remove_recipient"
	MethodAlertSetLevel        = "alert_set_level"
	MethodAlertLevel           = "alert_level"
	MethodAlertTest            = "test_alert"
	MethodAddAlert             = "add_alert"
)

// Argument/result payload shapes shared by server dispatch and client
// call sites.

type nodeArg struct {
	Host string `json:"host"`
}

type addNodeArg struct {
	Host string `json:"host"`
	Addr string `json:"addr"`
}

type attrArg struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

type namedArg struct {
	Name string `json:"name"`
}

type namedAttrArg struct {
	Name     string `json:"name"`
	AttrName string `json:"attr_name"`
	Value    any    `json:"value,omitempty"`
}

type resAddArg struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

type linkArg struct {
	Parent string `json:"parent"`
	Name   string `json:"name"`
}

type namesArg struct {
	Names []string `json:"names"`
}

type statesResult struct {
	States map[string]string `json:"states"`
}

type clusResourceArg struct {
	ResourceName string `json:"resource_name"`
	SystemName   string `json:"system_name"`
}

type clusMutateArg struct {
	ResourceName string `json:"resource_name,omitempty"`
	GroupName    string `json:"group_name,omitempty"`
	AttrName     string `json:"attr_name,omitempty"`
	Value        any    `json:"value,omitempty"`
	Parent       string `json:"parent,omitempty"`
	Remote       bool   `json:"remote"`
}

type clusGroupArg struct {
	GroupName string `json:"group_name"`
	Node      string `json:"node"`
}

type clusStateManyArg struct {
	Names  []string `json:"names"`
	Remote bool     `json:"remote"`
}

type logCommandArg struct {
	RemoteOrigin string `json:"remote_origin"`
	Command      string `json:"command"`
	Args         string `json:"args"`
	Result       string `json:"result"`
}

type logLevelArg struct {
	Level string `json:"level"`
}

type alertTestArg struct {
	ResourceName string `json:"resource_name"`
	Message      string `json:"message"`
}

type alertRecordArg struct {
	Time         string `json:"time"`
	ClusterName  string `json:"cluster_name"`
	HostName     string `json:"host_name"`
	ResourceName string `json:"resource_name"`
	GroupName    string `json:"group_name"`
	Level        int    `json:"level"`
	Message      string `json:"message"`
}
