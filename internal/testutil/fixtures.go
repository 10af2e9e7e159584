// Package testutil provides the fixture domain shared by package tests: a
// metadata registry of people, addresses, professions and documents, the
// matching SQLite schema, and seed rows.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/store"
)

// Descriptors returns the fixture entity descriptors.
//
// Pessoa is the usual root. It carries every field shape: scalars of each
// type, an aliased scalar, an enum, an embedded value, a transient field,
// to-one relations, auto-included and opt-in collections, and a collection
// with no element type.
func Descriptors() []meta.Descriptor {
	return []meta.Descriptor{
		{
			Name: "Pessoa",
			Fields: []meta.FieldDescriptor{
				{Name: "id", Type: "int"},
				{Name: "nome", Type: "string"},
				{Name: "idade", Type: "int"},
				{Name: "ativo", Type: "bool"},
				{Name: "nascimento", Type: "time"},
				{Name: "sexo", Type: "enum", EnumValues: []string{"M", "F"}},
				{Name: "nickname", Type: "string", Alias: "apelido"},
				{Name: "contato", Type: "Contato", Kind: "embedded"},
				{Name: "senha", Type: "string", Transient: true},
				{Name: "profissao", Type: "Profissao", Kind: "to_one"},
				{Name: "endereco", Type: "Endereco", Kind: "to_one"},
				{Name: "enderecos", Type: "Endereco", Kind: "to_many"},
				{Name: "documentos", Type: "Documento", Kind: "to_many", Collection: "set", NoAutoInclude: true},
				{Name: "tags", Kind: "to_many", NoAutoInclude: true},
			},
		},
		{
			Name: "Contato",
			Fields: []meta.FieldDescriptor{
				{Name: "email", Type: "string"},
				{Name: "telefone", Type: "string"},
			},
		},
		{
			Name: "Profissao",
			Fields: []meta.FieldDescriptor{
				{Name: "id", Type: "int"},
				{Name: "descricao", Type: "string"},
				{Name: "salario", Type: "float"},
				{Name: "categoria", Type: "Categoria", Kind: "to_one"},
			},
		},
		{
			Name: "Categoria",
			Fields: []meta.FieldDescriptor{
				{Name: "id", Type: "int"},
				{Name: "nome", Type: "string"},
			},
		},
		{
			Name: "Endereco",
			Fields: []meta.FieldDescriptor{
				{Name: "id", Type: "int"},
				{Name: "cidade", Type: "string"},
				{Name: "cep", Type: "string"},
				{Name: "uf", Type: "string"},
				{Name: "telefones", Type: "Telefone", Kind: "to_many"},
			},
		},
		{
			Name: "Telefone",
			Fields: []meta.FieldDescriptor{
				{Name: "id", Type: "int"},
				{Name: "numero", Type: "string"},
			},
		},
		{
			Name: "Documento",
			Fields: []meta.FieldDescriptor{
				{Name: "id", Type: "int"},
				{Name: "numero", Type: "string"},
				{Name: "tipo", Type: "enum", EnumValues: []string{"RG", "CPF"}},
			},
		},
	}
}

// Registry returns a fresh registry holding the fixture descriptors.
func Registry() *meta.Registry {
	r := meta.NewRegistry()
	r.MustRegister(Descriptors()...)
	return r
}

// Schema is the SQLite DDL matching Descriptors.
const Schema = `
CREATE TABLE IF NOT EXISTS categoria (
	id   INTEGER PRIMARY KEY,
	nome TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profissao (
	id           INTEGER PRIMARY KEY,
	descricao    TEXT NOT NULL,
	salario      REAL,
	categoria_id INTEGER
);

CREATE TABLE IF NOT EXISTS pessoa (
	id               INTEGER PRIMARY KEY,
	nome             TEXT NOT NULL,
	idade            INTEGER,
	ativo            INTEGER NOT NULL DEFAULT 1,
	nascimento       TEXT,
	sexo             TEXT,
	nickname         TEXT,
	contato_email    TEXT,
	contato_telefone TEXT,
	profissao_id     INTEGER,
	endereco_id      INTEGER
);

CREATE TABLE IF NOT EXISTS endereco (
	id        INTEGER PRIMARY KEY,
	cidade    TEXT NOT NULL,
	cep       TEXT,
	uf        TEXT,
	pessoa_id INTEGER
);

CREATE TABLE IF NOT EXISTS telefone (
	id          INTEGER PRIMARY KEY,
	numero      TEXT NOT NULL,
	endereco_id INTEGER
);

CREATE TABLE IF NOT EXISTS documento (
	id        INTEGER PRIMARY KEY,
	numero    TEXT NOT NULL,
	tipo      TEXT,
	pessoa_id INTEGER
);
`

// Seed fills the fixture tables.
//
//	pessoa 1 Joao Silva   profissao 1, endereco 1, enderecos 1 2, documentos 1 2
//	pessoa 2 Maria Souza  profissao 2, endereco 3, enderecos 3,   documentos 3
//	pessoa 3 Jose Santos  profissao 1, no address, inactive
//	pessoa 4 Ana Lima     no profession, no address
const Seed = `
INSERT INTO categoria (id, nome) VALUES
	(1, 'Exatas'),
	(2, 'Saude');

INSERT INTO profissao (id, descricao, salario, categoria_id) VALUES
	(1, 'Engenheiro', 10000.0, 1),
	(2, 'Medica', 15000.0, 2),
	(3, 'Professor', 5000.0, 1);

INSERT INTO pessoa (id, nome, idade, ativo, nascimento, sexo, nickname, contato_email, contato_telefone, profissao_id, endereco_id) VALUES
	(1, 'Joao Silva', 30, 1, '1994-03-10', 'M', 'joca', 'joao@example.com', '1111-0000', 1, 1),
	(2, 'Maria Souza', 25, 1, '1999-07-21', 'F', NULL, 'maria@example.com', NULL, 2, 3),
	(3, 'Jose Santos', 40, 0, '1984-01-02', 'M', NULL, NULL, NULL, 1, NULL),
	(4, 'Ana Lima', 35, 1, '1989-11-30', 'F', 'aninha', NULL, NULL, NULL, NULL);

INSERT INTO endereco (id, cidade, cep, uf, pessoa_id) VALUES
	(1, 'Sao Paulo', '01000-000', 'SP', 1),
	(2, 'Campinas', '13000-000', 'SP', 1),
	(3, 'Rio de Janeiro', '20000-000', 'RJ', 2);

INSERT INTO telefone (id, numero, endereco_id) VALUES
	(1, '1111-1111', 1),
	(2, '2222-2222', 1),
	(3, '3333-3333', 3);

INSERT INTO documento (id, numero, tipo, pessoa_id) VALUES
	(1, '123', 'RG', 1),
	(2, '456', 'CPF', 1),
	(3, '789', 'CPF', 2);
`

// OpenStore opens a SQLite store under t.TempDir with the fixture schema.
// Rows are seeded unless empty is true.
func OpenStore(t *testing.T, empty bool) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "fixture.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.ApplySchema(ctx, Schema); err != nil {
		t.Fatalf("ApplySchema() failed: %v", err)
	}
	if !empty {
		if err := s.ApplySchema(ctx, Seed); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	return s
}
