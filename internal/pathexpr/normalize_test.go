package pathexpr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want []string
	}{
		{"single", "nome", []string{"nome"}},
		{"list", "nome, idade ,ativo", []string{"nome", "idade", "ativo"}},
		{"group", "profissao{id,descricao}", []string{"profissao.id", "profissao.descricao"}},
		{"group with neighbours", "nome,profissao{id,descricao},idade", []string{"nome", "profissao.id", "profissao.descricao", "idade"}},
		{"nested group", "a{b{c,d},e}", []string{"a.b.c", "a.b.d", "a.e"}},
		{"dotted group name", "profissao.categoria{id,nome}", []string{"profissao.categoria.id", "profissao.categoria.nome"}},
		{"group keeps markers", "-profissao{id:asc,descricao}", []string{"-profissao.id:asc", "-profissao.descricao"}},
		{"spaces in group", "profissao{ id , descricao }", []string{"profissao.id", "profissao.descricao"}},
		{"empty group", "profissao{}", []string{"profissao"}},
		{"empty entries dropped", ",nome,,", []string{"nome"}},
		{"empty input", "", []string{}},
		{"unbalanced left alone", "profissao{id", []string{"profissao{id"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"nome",
		"nome,profissao{id,descricao}",
		"a{b{c,d},e},f",
		"-nome,idade:desc,profissao{id:asc,descricao:desc}",
		"endereco{cidade,telefones{numero}}",
		"  x , y{ z } ",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(strings.Join(once, ","))
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalize_UnicodeComposition(t *testing.T) {
	// Base letters followed by combining marks compose to single runes.
	decomposed := "descric\u0327a\u0303o"
	composed := "descri\u00e7\u00e3o"

	assert.Equal(t, []string{composed}, Normalize(decomposed))
}
