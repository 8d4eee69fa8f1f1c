package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evalio/evalio-api/internal/models"
)

func TestEvaluationRepositorySaveResultFirstCompletion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	student := seedStudent(t, db, 1, 10)
	submission := seedSubmission(t, db, student.ID, 20, models.SubmissionStatusProcessing)

	evaluation := &models.Evaluation{
		SubmissionID:     submission.ID,
		Score:            16,
		Percentage:       80,
		GeneralFeedback:  "Bon travail",
		DetailedFeedback: datatypes.JSONMap{"score": 16.0},
		CreatedByAI:      true,
	}
	items := []models.FeedbackItem{
		{Title: "Point fort", Content: "Clair", FeedbackType: models.FeedbackKindPositive, DisplayOrder: 0},
		{Title: "Point à améliorer", Content: "Lent", FeedbackType: models.FeedbackKindImprovement, DisplayOrder: 1},
	}

	err := repo.SaveResult(context.Background(), SaveResultParams{
		Evaluation:   evaluation,
		Items:        items,
		StudentID:    student.ID,
		ScoreOutOf20: 16,
		UpdateStats:  true,
	})
	require.NoError(t, err)

	stored, err := repo.GetBySubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, 16.0, stored.Score)
	require.Len(t, stored.FeedbackItems, 2)
	require.Equal(t, "Clair", stored.FeedbackItems[0].Content)

	// count=1 avg=10, new score 16 -> ((10*1)+16)/2 = 13
	var updated models.Student
	require.NoError(t, db.First(&updated, student.ID).Error)
	require.Equal(t, 2, updated.ExercisesCompleted)
	require.InDelta(t, 13.0, updated.AverageScore, 1e-9)
}

func TestEvaluationRepositorySaveResultReplacesFeedbackItems(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	student := seedStudent(t, db, 0, 0)
	submission := seedSubmission(t, db, student.ID, 20, models.SubmissionStatusProcessing)

	first := &models.Evaluation{SubmissionID: submission.ID, Score: 12, Percentage: 60, CreatedByAI: true}
	require.NoError(t, repo.SaveResult(context.Background(), SaveResultParams{
		Evaluation:   first,
		Items:        []models.FeedbackItem{{Title: "Ancien", Content: "old", FeedbackType: models.FeedbackKindSuggestion}},
		StudentID:    student.ID,
		ScoreOutOf20: 12,
		UpdateStats:  true,
	}))

	stored, err := repo.GetBySubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	oldItemID := stored.FeedbackItems[0].ID

	second := &models.Evaluation{SubmissionID: submission.ID, Score: 15, Percentage: 75, CreatedByAI: true}
	require.NoError(t, repo.SaveResult(context.Background(), SaveResultParams{
		Evaluation: second,
		Items: []models.FeedbackItem{
			{Title: "Nouveau", Content: "a", FeedbackType: models.FeedbackKindPositive, DisplayOrder: 0},
			{Title: "Nouveau", Content: "b", FeedbackType: models.FeedbackKindSuggestion, DisplayOrder: 1},
		},
		StudentID:    student.ID,
		ScoreOutOf20: 15,
		UpdateStats:  false,
	}))

	require.Equal(t, first.ID, second.ID, "re-evaluation reuses the evaluation row")

	stored, err = repo.GetBySubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, 15.0, stored.Score)
	require.Len(t, stored.FeedbackItems, 2)
	for _, item := range stored.FeedbackItems {
		require.NotEqual(t, oldItemID, item.ID, "stale feedback items must not survive a re-run")
	}

	var count int64
	require.NoError(t, db.Model(&models.FeedbackItem{}).Count(&count).Error)
	require.Equal(t, int64(2), count)

	// UpdateStats was false: the re-run must not double-count.
	var updated models.Student
	require.NoError(t, db.First(&updated, student.ID).Error)
	require.Equal(t, 1, updated.ExercisesCompleted)
	require.InDelta(t, 12.0, updated.AverageScore, 1e-9)
}

func TestEvaluationRepositorySaveResultAssignsDefaultCategory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	student := seedStudent(t, db, 0, 0)
	submission := seedSubmission(t, db, student.ID, 20, models.SubmissionStatusProcessing)

	evaluation := &models.Evaluation{SubmissionID: submission.ID, Score: 12, Percentage: 60, CreatedByAI: true}
	require.NoError(t, repo.SaveResult(context.Background(), SaveResultParams{
		Evaluation:   evaluation,
		Items:        []models.FeedbackItem{{Title: "Point fort", Content: "Clair", FeedbackType: models.FeedbackKindPositive}},
		StudentID:    student.ID,
		ScoreOutOf20: 12,
		UpdateStats:  true,
	}))

	var category models.FeedbackCategory
	require.NoError(t, db.Where("name = ?", "Général").First(&category).Error)

	stored, err := repo.GetBySubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Len(t, stored.FeedbackItems, 1)
	require.NotNil(t, stored.FeedbackItems[0].CategoryID)
	require.Equal(t, category.ID, *stored.FeedbackItems[0].CategoryID)

	// A re-run reuses the category row instead of duplicating it.
	rerun := &models.Evaluation{SubmissionID: submission.ID, Score: 13, Percentage: 65, CreatedByAI: true}
	require.NoError(t, repo.SaveResult(context.Background(), SaveResultParams{
		Evaluation:   rerun,
		Items:        []models.FeedbackItem{{Title: "Commentaire", Content: "Mieux", FeedbackType: models.FeedbackKindSuggestion}},
		StudentID:    student.ID,
		ScoreOutOf20: 13,
		UpdateStats:  false,
	}))

	var count int64
	require.NoError(t, db.Model(&models.FeedbackCategory{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestEvaluationRepositorySaveResultRollsBackOnStatsFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	student := seedStudent(t, db, 0, 0)
	submission := seedSubmission(t, db, student.ID, 20, models.SubmissionStatusProcessing)

	evaluation := &models.Evaluation{SubmissionID: submission.ID, Score: 10, Percentage: 50, CreatedByAI: true}
	err := repo.SaveResult(context.Background(), SaveResultParams{
		Evaluation:   evaluation,
		Items:        []models.FeedbackItem{{Title: "x", Content: "y", FeedbackType: models.FeedbackKindSuggestion}},
		StudentID:    student.ID + 999,
		ScoreOutOf20: 10,
		UpdateStats:  true,
	})
	require.Error(t, err)

	// The statistics failure must roll back the evaluation and its items.
	_, err = repo.GetBySubmission(context.Background(), submission.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Model(&models.FeedbackItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEvaluationRepositoryFirstCompletionAverage(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	student := seedStudent(t, db, 0, 0)
	submission := seedSubmission(t, db, student.ID, 20, models.SubmissionStatusProcessing)

	evaluation := &models.Evaluation{SubmissionID: submission.ID, Score: 14, Percentage: 70, CreatedByAI: true}
	require.NoError(t, repo.SaveResult(context.Background(), SaveResultParams{
		Evaluation:   evaluation,
		StudentID:    student.ID,
		ScoreOutOf20: 14,
		UpdateStats:  true,
	}))

	var updated models.Student
	require.NoError(t, db.First(&updated, student.ID).Error)
	require.Equal(t, 1, updated.ExercisesCompleted)
	require.InDelta(t, 14.0, updated.AverageScore, 1e-9, "first completion sets the average directly")
}
