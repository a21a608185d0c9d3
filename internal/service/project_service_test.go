package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/julienbutty/prometrage-sub001/internal/model"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
)

func TestProjectCreateValidatesInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.projects.Create(ctx, ProjectInput{Reference: "  ", Items: []ItemInput{{Repere: "A"}}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, []FieldError{
		{Field: "reference", Message: "is required"},
		{Field: "menuiseries[0].intitule", Message: "is required"},
	}, verr.Fields)

	unknown := uuid.New()
	_, err = e.projects.Create(ctx, ProjectInput{Reference: "CH-1", ClientID: &unknown})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "clientId", verr.Fields[0].Field)
}

func TestProjectCreateDuplicateReference(t *testing.T) {
	e := newEnv(t)
	e.createProject(t, "CH-42")

	_, err := e.projects.Create(context.Background(), ProjectInput{Reference: "CH-42"})
	assert.ErrorIs(t, err, ErrConflict)
	var conflict *repository.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "reference", conflict.Field)
}

func TestProjectGetAndList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.createProject(t, "CH-7", "Fenêtre 2 vantaux", "Porte-fenêtre")

	_, err := e.items.Update(ctx, created.Items[0].ID, UpdateItemInput{ModifiedData: map[string]any{"largeur": 1100.0}})
	require.NoError(t, err)
	_, err = e.items.Validate(ctx, created.Items[0].ID)
	require.NoError(t, err)

	detail, err := e.projects.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Progress{Total: 2, Imported: 1, Validated: 1}, detail.Progress)
	require.Len(t, detail.Items, 2)
	assert.Equal(t, model.StatusValidated, detail.Items[0].State)
	assert.Equal(t, 10.0, detail.Items[0].Ecarts["largeur"].Percentage)
	require.NotNil(t, detail.Items[0].OpeningDirection)
	assert.Equal(t, "gauche", *detail.Items[0].OpeningDirection)

	list, err := e.projects.List(ctx, "ch-7")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Progress.Total)
	assert.Nil(t, list[0].Menuiseries)

	_, err = e.projects.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.createProject(t, "CH-8")
	client, err := e.projects.CreateClient(ctx, ClientInput{Nom: "Leroy"})
	require.NoError(t, err)

	updated, err := e.projects.Update(ctx, created.ID, ProjectInput{Reference: "CH-8b", ClientID: &client.ID})
	require.NoError(t, err)
	assert.Equal(t, "CH-8b", updated.Reference)
	require.NotNil(t, updated.Client)
	assert.Equal(t, "Leroy", updated.Client.Nom)

	_, err = e.projects.Update(ctx, uuid.New(), ProjectInput{Reference: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectDeleteRemovesSource(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.extractor.result = sampleResult()

	detail, err := e.imports.Import(ctx, ImportInput{FileName: "fiche.pdf", Data: samplePDF(t)})
	require.NoError(t, err)
	require.NotEmpty(t, detail.SourcePDF)

	source, err := e.projects.Source(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", source.ContentType)
	assert.True(t, bytes.HasPrefix(source.Content, []byte("%PDF")))

	require.NoError(t, e.projects.Delete(ctx, detail.ID))
	_, err = e.store.Open(ctx, detail.SourcePDF)
	assert.Error(t, err)

	assert.ErrorIs(t, e.projects.Delete(ctx, detail.ID), ErrNotFound)
}

func TestProjectSourceMissing(t *testing.T) {
	e := newEnv(t)
	created := e.createProject(t, "CH-9")
	_, err := e.projects.Source(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectExport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.createProject(t, "CH 10/é", "Coulissant 2 vantaux")
	_, err := e.items.Update(ctx, created.Items[0].ID, UpdateItemInput{ModifiedData: map[string]any{"hauteur": "2 100"}})
	require.NoError(t, err)

	file, err := e.projects.Export(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ecarts-CH-10-e.xlsx", file.FileName)
	assert.Equal(t, xlsxContentType, file.ContentType)

	book, err := excelize.OpenReader(bytes.NewReader(file.Content))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Écarts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[1][0])
}

func TestCreateClientRequiresName(t *testing.T) {
	e := newEnv(t)
	_, err := e.projects.CreateClient(context.Background(), ClientInput{Nom: " "})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	client, err := e.projects.CreateClient(context.Background(), ClientInput{Nom: "Bernard", Email: "b@example.fr"})
	require.NoError(t, err)
	clients, err := e.projects.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, client.ID, clients[0].ID)
}
