package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evalio/evalio-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Exercise{},
		&models.Correction{},
		&models.Submission{},
		&models.AIModel{},
		&models.AIPromptTemplate{},
		&models.EvaluationJob{},
		&models.Evaluation{},
		&models.FeedbackCategory{},
		&models.FeedbackItem{},
	))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, completed int, average float64) models.Student {
	t.Helper()
	student := models.Student{
		FirstName:          "Marie",
		LastName:           "Dupont",
		Email:              fmt.Sprintf("%s@example.com", t.Name()),
		ExercisesCompleted: completed,
		AverageScore:       average,
	}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedSubmission(t *testing.T, db *gorm.DB, studentID uint, totalPoints float64, status string) models.Submission {
	t.Helper()
	exercise := models.Exercise{Title: "Algorithmique", TotalPoints: totalPoints}
	require.NoError(t, db.Create(&exercise).Error)

	submission := models.Submission{
		ExerciseID: exercise.ID,
		StudentID:  studentID,
		Status:     status,
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}
