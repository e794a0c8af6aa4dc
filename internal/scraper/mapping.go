package scraper

// categoryMapping is the closed set of category ids to display names,
// ported verbatim from the upstream platform's category options (the
// seven core communication functions). Unknown ids resolve to "".
var categoryMapping = map[int]string{
	4:  "Anleiten",
	14: "Berichten",
	5:  "Erklären",
	6:  "Fragen",
	7:  "Informieren",
	8:  "Überzeugen",
	9:  "Unterhalten",
}

// taskMapping is the closed set of writing-task ids to display names.
// Tasks are independent of categories and filtered separately. Unknown
// ids resolve to "".
var taskMapping = map[int]string{
	4:  "Fiktionaler Dialog zwischen zwei Gegenständen",
	10: "Wo ist Hugo? (Anleitung schreiben)",
}

// CategoryName resolves a category id to its display name, or "" if the
// id is outside the closed mapping.
func CategoryName(id int) string {
	return categoryMapping[id]
}

// TaskName resolves a task id to its display name, or "" if the id is
// outside the closed mapping.
func TaskName(id int) string {
	return taskMapping[id]
}

// categoryIDByName resolves a category display name, as read off an
// article's detail page ("Kategorie: …"), back to its id. Returns nil if
// the name is outside the closed mapping.
func categoryIDByName(name string) *int {
	for id, n := range categoryMapping {
		if n == name {
			return &id
		}
	}
	return nil
}

// taskIDByName resolves a task display name, as read off an article's
// detail page ("Aufgabe: …"), back to its id. Returns nil if the name is
// outside the closed mapping.
func taskIDByName(name string) *int {
	for id, n := range taskMapping {
		if n == name {
			return &id
		}
	}
	return nil
}
