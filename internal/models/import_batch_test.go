package models_test

import (
	"time"

	"github.com/contalivre/backend/internal/models"
	"github.com/contalivre/backend/internal/types"
)

func (suite *TestSuiteStandard) createTestBatch(batch models.ImportBatch) models.ImportBatch {
	if err := models.DB.Create(&batch).Error; err != nil {
		suite.Assert().FailNow("ImportBatch could not be saved", "Error: %s", err)
	}
	return batch
}

func (suite *TestSuiteStandard) TestImportBatchDefaultsImportedAt() {
	user := suite.createTestUser()
	batch := suite.createTestBatch(models.ImportBatch{UserID: user.ID, FileName: "extrato.csv"})

	suite.Assert().False(batch.ImportedAt.IsZero())
}

func (suite *TestSuiteStandard) TestImportBatchesForUser() {
	user := suite.createTestUser()
	other := suite.createTestUser()

	at := func(day int) time.Time {
		return time.Date(2026, 2, day, 12, 0, 0, 0, time.UTC)
	}

	suite.createTestBatch(models.ImportBatch{UserID: user.ID, FileName: "antigo.csv", ImportedAt: at(1)})
	suite.createTestBatch(models.ImportBatch{UserID: user.ID, FileName: "recente.csv", ImportedAt: at(20)})
	suite.createTestBatch(models.ImportBatch{UserID: other.ID, FileName: "alheio.csv", ImportedAt: at(10)})

	batches, err := models.ImportBatchesForUser(models.DB, user.ID, 50)
	suite.Require().Nil(err)
	suite.Require().Len(batches, 2)

	// Most recent first.
	suite.Assert().Equal("recente.csv", batches[0].FileName)
	suite.Assert().Equal("antigo.csv", batches[1].FileName)

	batches, err = models.ImportBatchesForUser(models.DB, user.ID, 1)
	suite.Require().Nil(err)
	suite.Assert().Len(batches, 1)
}

func (suite *TestSuiteStandard) TestImportBatchesInMonth() {
	user := suite.createTestUser()

	suite.createTestBatch(models.ImportBatch{
		UserID:     user.ID,
		FileName:   "janeiro.csv",
		ImportedAt: time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC),
	})
	suite.createTestBatch(models.ImportBatch{
		UserID:     user.ID,
		FileName:   "fevereiro.csv",
		ImportedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})

	month, err := types.ParseMonth("2026-02")
	suite.Require().Nil(err)

	batches, err := models.ImportBatchesInMonth(models.DB, user.ID, month, 50)
	suite.Require().Nil(err)
	suite.Require().Len(batches, 1)
	suite.Assert().Equal("fevereiro.csv", batches[0].FileName)
}

func (suite *TestSuiteStandard) TestImportSourceByHash() {
	user := suite.createTestUser()

	source := models.ImportSource{
		UserID:   user.ID,
		Kind:     models.SourceKindBankStatement,
		FileName: "extrato.csv",
		FileHash: "feed",
	}
	suite.Require().Nil(models.DB.Create(&source).Error)

	found, err := models.ImportSourceByHash(models.DB, user.ID, "feed")
	suite.Require().Nil(err)
	suite.Assert().Equal(source.ID, found.ID)

	_, err = models.ImportSourceByHash(models.DB, user.ID, "dead")
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)

	// The pair (user, hash) is unique.
	err = models.DB.Create(&models.ImportSource{
		UserID:   user.ID,
		Kind:     models.SourceKindBankStatement,
		FileName: "outro-nome.csv",
		FileHash: "feed",
	}).Error
	suite.Assert().ErrorContains(err, "UNIQUE constraint failed")
}
