package events

const TopicRunEvents = "democtl.events"

const TypeRunEvent = "run.event"
