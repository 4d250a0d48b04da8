package store

// builtinSigns is the vocabulary seeded into a new database.
var builtinSigns = map[string][]Sign{
	"libras": {
		{Word: "olá", Description: "Mão aberta, movendo lateralmente perto da cabeça"},
		{Word: "oi", Description: "Mão aberta, movendo para cima e para baixo"},
		{Word: "bom dia", Description: "Gesto de 'bom' + gesticular 'dia'"},
		{Word: "boa tarde", Description: "Gesto de 'bom' + gesticular 'tarde'"},
		{Word: "boa noite", Description: "Gesto de 'bom' + gesticular 'noite'"},
		{Word: "obrigado", Description: "Mão aberta movendo para frente do corpo"},
		{Word: "de nada", Description: "Aceno com a mão"},
		{Word: "por favor", Description: "Mão no peito com movimento suave"},
		{Word: "sim", Description: "Cabeça balançando para cima e para baixo ou gesto de afirmação"},
		{Word: "não", Description: "Cabeça balançando para os lados"},
		{Word: "ajuda", Description: "Mãos abertas pedindo auxílio"},
		{Word: "desculpa", Description: "Mão no peito com expressão de arrependimento"},
		{Word: "comer", Description: "Dedos com movimento em direção à boca"},
		{Word: "beber", Description: "Mão em formato de xícara perto da boca"},
		{Word: "dormir", Description: "Cabeça reclinada em mão"},
		{Word: "trabalho", Description: "Movimento de mãos em atividade"},
		{Word: "pai", Description: "Mão na testa"},
		{Word: "mãe", Description: "Mão no queixo"},
		{Word: "filho", Description: "Mão na cabeça de uma criança imaginária"},
		{Word: "filha", Description: "Mão na cabeça + gesto feminino"},
		{Word: "irmão", Description: "Dois dedos indicadores lado a lado"},
		{Word: "irmã", Description: "Dois dedos indicadores lado a lado + gesto feminino"},
		{Word: "avó", Description: "Mão no queixo movendo para baixo"},
		{Word: "avô", Description: "Mão na testa movendo para baixo"},
		{Word: "casa", Description: "Mãos em formato de teto"},
		{Word: "escola", Description: "Mãos juntas como um livro"},
		{Word: "feliz", Description: "Sorriso com movimento das mãos para cima"},
		{Word: "triste", Description: "Sobrancelhas franzidas com movimento para baixo"},
		{Word: "alegre", Description: "Movimento rápido das mãos"},
		{Word: "cansado", Description: "Mão na testa com expressão de cansaço"},
		{Word: "raiva", Description: "Punhos cerrados com movimento agressivo"},
		{Word: "medo", Description: "Mãos em frente ao rosto, recuando"},
		{Word: "dor", Description: "Dedos em formato de pinca apontando o local da dor"},
		{Word: "saúde", Description: "Dedos em V tocando braço"},
		{Word: "médico", Description: "Sinal de pulso + movimento de exame"},
		{Word: "hospital", Description: "Sinal de cruz"},
		{Word: "água", Description: "Dedos em formato de W movendo da boca para baixo"},
		{Word: "comida", Description: "Mão em formato de colher perto da boca"},
		{Word: "amor", Description: "Mãos no coração"},
		{Word: "pessoa", Description: "Mãos abertas movendo para baixo"},
		{Word: "coisa", Description: "Mão indicando objeto"},
	},
	"lsm": {
		{Word: "olá", Description: "Mão aberta acenando"},
		{Word: "oi", Description: "Aceno simples com a mão"},
		{Word: "bom", Description: "Polegar para cima ou gesto positivo"},
		{Word: "dia", Description: "Mão indicando o sol"},
		{Word: "noite", Description: "Gesto de escuridão ou mão na cabeça"},
		{Word: "obrigado", Description: "Mão no peito com movimento para frente"},
		{Word: "por favor", Description: "Mãos em posição de pedido"},
		{Word: "sim", Description: "Afirmação com cabeça ou gesto positivo"},
		{Word: "não", Description: "Negação com cabeça ou gesto negativo"},
		{Word: "ajuda", Description: "Mãos oferecendo apoio"},
		{Word: "comer", Description: "Movimento de mão para a boca"},
		{Word: "beber", Description: "Mão em xícara"},
		{Word: "dormir", Description: "Cabeça em mão"},
		{Word: "trabalho", Description: "Movimento de trabalho"},
		{Word: "pai", Description: "Gesto masculino + família"},
		{Word: "mãe", Description: "Gesto feminino + família"},
		{Word: "filho", Description: "Gesto pequeno + família"},
		{Word: "filha", Description: "Gesto pequeno feminino + família"},
		{Word: "irmão", Description: "Comparação entre dois"},
		{Word: "irmã", Description: "Comparação feminina"},
		{Word: "casa", Description: "Estrutura de teto"},
		{Word: "escola", Description: "Livro aberto"},
		{Word: "feliz", Description: "Sorriso com movimento para cima"},
		{Word: "triste", Description: "Expressão triste com movimento para baixo"},
		{Word: "alegre", Description: "Movimento energético"},
		{Word: "cansado", Description: "Movimento lento e pesado"},
	},
}
