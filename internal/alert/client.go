package alert

import "time"

// Client raises alerts against a Queue. internal/engine wires this
// directly to its own Handler's Queue; internal/rpc exposes an
// add_alert RPC for cluster peers to reach the same queue remotely.
type Client struct {
	Queue       *Queue
	HostName    string
	ClusterName string
}

func (c *Client) push(level Level, resourceName, groupName, msg string) {
	c.Queue.Push(Record{
		Time:         time.Now(),
		ClusterName:  c.ClusterName,
		HostName:     c.HostName,
		ResourceName: resourceName,
		GroupName:    groupName,
		Level:        level,
		Message:      msg,
	})
}

// Critical raises a CRITICAL alert.
func (c *Client) Critical(resourceName, groupName, msg string) { c.push(Critical, resourceName, groupName, msg) }

// Error raises an ERROR alert.
func (c *Client) Error(resourceName, groupName, msg string) { c.push(Error, resourceName, groupName, msg) }

// Warning raises a WARNING alert.
func (c *Client) Warning(resourceName, groupName, msg string) { c.push(Warning, resourceName, groupName, msg) }

// Test raises an INFO alert used only to verify end-to-end delivery.
func (c *Client) Test(resourceName, groupName, msg string) { c.push(Info, resourceName, groupName, msg) }
