package report

// Tag is a single Sentry event tag, either pushed onto a Reporter instance
// to apply to every event, or passed per-call to ReportMessage/ReportException.
type Tag struct {
	Key   string
	Value string
}

// tagList is an ordered set of tags that pushes by update-by-key-or-append,
// grounded on adk_reporting_sentry_tag_push: a second push of an existing
// key overwrites its value in place rather than appending a duplicate.
type tagList []Tag

func (t tagList) push(key, value string) tagList {
	for i := range t {
		if t[i].Key == key {
			t[i].Value = value
			return t
		}
	}
	return append(t, Tag{Key: key, Value: value})
}
