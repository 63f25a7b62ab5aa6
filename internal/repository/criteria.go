package repository

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/noah-isme/enrollment-api/internal/models"
)

// whereBuilder collects AND-ed conditions with positional arguments.
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

// add appends a condition; format receives the placeholder index as %[1]d.
func (b *whereBuilder) add(format string, value interface{}) {
	b.args = append(b.args, value)
	b.conditions = append(b.conditions, fmt.Sprintf(format, len(b.args)))
}

func (b *whereBuilder) addRaw(condition string) {
	b.conditions = append(b.conditions, condition)
}

// exists adds an EXISTS sub-select whose inner conditions are built by fn.
// Nothing is added when fn adds no condition.
func (b *whereBuilder) exists(selectPrefix string, fn func(inner *whereBuilder)) {
	inner := &whereBuilder{args: b.args}
	fn(inner)
	b.args = inner.args
	if len(inner.conditions) == 0 {
		return
	}
	b.conditions = append(b.conditions, fmt.Sprintf("EXISTS (%s AND %s)", selectPrefix, strings.Join(inner.conditions, " AND ")))
}

func (b *whereBuilder) clause() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

func likePattern(fragment string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + replacer.Replace(fragment) + "%"
}

// subjectPredicates filters on alias s.
func subjectPredicates(b *whereBuilder, c models.SubjectCriteria) {
	if !c.IncludeDeleted {
		b.addRaw("s.is_deleted = FALSE")
	}
	if c.Name != "" {
		b.add("(s.full_name ILIKE $%[1]d OR s.name_pronunciation ILIKE $%[1]d OR s.nickname ILIKE $%[1]d)", likePattern(c.Name))
	}
	if c.StartBirthDate != nil {
		b.add("s.birth_date >= $%d", *c.StartBirthDate)
	}
	if c.EndBirthDate != nil {
		b.add("s.birth_date <= $%d", *c.EndBirthDate)
	}
	if c.Area != "" {
		b.add("s.area ILIKE $%d", likePattern(c.Area))
	}
	if c.Email != "" {
		b.add("LOWER(s.email) = LOWER($%d)", c.Email)
	}
	if c.Gender != "" {
		b.add("s.gender = $%d", c.Gender)
	}
	if c.Remark != "" {
		b.add("s.remark ILIKE $%d", likePattern(c.Remark))
	}
}

// enrollmentPredicates filters on aliases e (enrollments) and c (courses).
// The status filter matches enrollments whose open interval has one of the
// requested statuses.
func enrollmentPredicates(b *whereBuilder, c models.SubjectCriteria) {
	if c.CourseID != nil {
		b.add("e.course_id = $%d", *c.CourseID)
	}
	if c.Category != "" {
		b.add("c.category = $%d", c.Category)
	}
	if c.StartDate != nil {
		b.add("e.start_date >= $%d", *c.StartDate)
	}
	if c.EndDate != nil {
		b.add("e.end_date <= $%d", *c.EndDate)
	}
	if len(c.Statuses) > 0 {
		b.add("EXISTS (SELECT 1 FROM status_history cur WHERE cur.attending_id = e.attending_id AND cur.end_date IS NULL AND cur.status_id = ANY($%d))", pq.Array(c.StatusIDs()))
	}
}
