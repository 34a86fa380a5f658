package events

const (
	TopicNetlinkAddr  = "osvrouter:events:netlink:addr"
	TopicNetlinkRoute = "osvrouter:events:netlink:route"
	TopicNetlinkLink  = "osvrouter:events:netlink:link"
)
