package events

import "fmt"

// Topic patterns for coordinator lifecycle events.

func TopicTask(taskID string) string {
	return fmt.Sprintf("events.task.%s", taskID)
}

func TopicNode(nodeID string) string {
	return fmt.Sprintf("events.node.%s", nodeID)
}

const (
	TopicAll       = "events.>"
	TopicTasksAll  = "events.task.*"
	TopicNodesAll  = "events.node.*"
	TopicSchedules = "events.schedule"
)
