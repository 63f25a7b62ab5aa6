package service

import "github.com/noah-isme/enrollment-api/internal/models"

// GroupCourseDetails attaches to each enrollment the status events carrying
// its id, in the order supplied. Every enrollment yields a CourseDetail, with
// an empty history when nothing matches. Entries without an id are skipped.
func GroupCourseDetails(enrollments []models.Enrollment, events []models.StatusEvent) []models.CourseDetail {
	byEnrollment := make(map[int64][]models.StatusEvent, len(enrollments))
	for _, event := range events {
		if event.AttendingID == 0 {
			continue
		}
		byEnrollment[event.AttendingID] = append(byEnrollment[event.AttendingID], event)
	}

	details := make([]models.CourseDetail, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if enrollment.AttendingID == 0 {
			continue
		}
		history := byEnrollment[enrollment.AttendingID]
		if history == nil {
			history = []models.StatusEvent{}
		}
		details = append(details, models.CourseDetail{Enrollment: enrollment, StatusHistory: history})
	}
	return details
}

// GroupSubjectDetails attaches to each subject the course details whose
// enrollment belongs to it. Subjects without matches are kept with an empty list.
func GroupSubjectDetails(subjects []models.Subject, details []models.CourseDetail) []models.SubjectDetail {
	bySubject := make(map[int64][]models.CourseDetail, len(subjects))
	for _, detail := range details {
		if detail.Enrollment.SubjectID == 0 {
			continue
		}
		bySubject[detail.Enrollment.SubjectID] = append(bySubject[detail.Enrollment.SubjectID], detail)
	}

	result := make([]models.SubjectDetail, 0, len(subjects))
	for _, subject := range subjects {
		if subject.ID == 0 {
			continue
		}
		courses := bySubject[subject.ID]
		if courses == nil {
			courses = []models.CourseDetail{}
		}
		result = append(result, models.SubjectDetail{Subject: subject, CourseDetails: courses})
	}
	return result
}
