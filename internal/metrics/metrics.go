package metrics

const Namespace = "taskboard"
