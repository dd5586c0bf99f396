package scenario

// Builtin returns the three shipped investigations. Prompt text and
// phase tables are game content, kept verbatim in Portuguese.
func Builtin() []Scenario {
	return []Scenario{floresta(), mangue(), mar()}
}

func floresta() Scenario {
	return Scenario{
		ID:          "floresta",
		Title:       "Operação Cinzas da Floresta",
		Description: "Incêndio criminoso e milícia desmatadora",
		Icon:        "🔥",
		Operation:   "OPERAÇÃO CINZAS DA FLORESTA",
		SystemPrompt: `Você é narrador noir de crime ambiental no Brasil.

HISTÓRIA: Agente investiga incêndio suspeito em floresta úmida → descobre árvores cortadas → encontra trator → revela milícia (desmatamento+gado+documentos falsos) → leva ao MP.

ESTILO:
- Narrativa visual tipo HQ noir
- Jogador = voz interior do agente
- Tom dramático, tenso
- Pistas GRADUAIS
- Mencione Lei 9.605/98 quando relevante

FORMATO JSON:
{
  "scene": "Descrição visual (2 parágrafos)",
  "options": ["Ação 1", "Ação 2", "Ação 3"],
  "clue": "Pista ou null",
  "danger": "baixo|médio|alto|crítico",
  "phase": "fase atual"
}

Responda APENAS JSON válido.`,
		OpeningPrompt: `ABERTURA - "OPERAÇÃO CINZAS DA FLORESTA"

Cenário: Agente ambiental, 05:47h, estrada de terra. Incêndio em floresta úmida (estação chuvosa). IMPOSSÍVEL naturalmente.

O agente sente: algo está ERRADO. 15 anos de experiência não mentem.

[VOZ INTERIOR - VOCÊ]
Primeira decisão. O que o agente faz?

Crie cena de abertura dramática estilo HQ noir. 3 opções de ação.
Responda APENAS JSON.`,
		PhaseOrder: []string{"descoberta", "investigacao_inicial", "evidencias", "confronto", "resolucao"},
		Phases: map[string]Phase{
			"descoberta": {
				Number:     1,
				Title:      "O Chamado das Cinzas",
				KeyClues:   []string{"Fogo irregular", "Floresta úmida queimando"},
				Atmosphere: "Mistério, tensão",
			},
			"investigacao_inicial": {
				Number:     2,
				Title:      "Rastros na Mata",
				KeyClues:   []string{"Cortes nas árvores", "Marcas de motosserra"},
				Atmosphere: "Descoberta perturbadora",
			},
			"evidencias": {
				Number:     3,
				Title:      "A Máquina da Destruição",
				KeyClues:   []string{"Trator escondido", "Documentos falsos"},
				Atmosphere: "Perigo iminente",
			},
			"confronto": {
				Number:     4,
				Title:      "Faces da Impunidade",
				KeyClues:   []string{"Milícia local", "Gado ilegal", "Corrupção"},
				Atmosphere: "Revelação chocante",
			},
			"resolucao": {
				Number:     5,
				Title:      "Justiça ou Silêncio",
				KeyClues:   []string{"Dossiê completo", "Evidências"},
				Atmosphere: "Clímax",
			},
		},
		InitialDanger: 25,
		Fallback: Fallback{
			Scene:   "A floresta aguarda sua decisão. O tempo passa.",
			Options: []string{"Avançar cautelosamente", "Analisar o ambiente", "Chamar reforços"},
		},
	}
}

func mangue() Scenario {
	return Scenario{
		ID:          "mangue",
		Title:       "Guardiões do Mangue",
		Description: "Supressão de mangue e documentos falsos",
		Icon:        "🌊",
		Operation:   "GUARDIÕES DO MANGUE",
		SystemPrompt: `Você é narrador de crime ambiental sobre SUPRESSÃO DE MANGUE.

CONTEXTO: Agente fiscaliza mansão com pier construído sobre mangue protegido. Proprietário alega herança familiar anterior à reserva. Documentos parecem legítimos mas há inconsistências.

ENREDO: Chegada ao local → Diálogo com proprietário → Análise de documentos → Descoberta de falsificação → Aplicação da multa (dilema: pressão social vs dever legal)

TEMAS EDUCATIVOS:
- Importância do mangue: berçário marinho, proteção costeira, carbono azul
- Lei 12.651/2012 (Código Florestal) - APP de mangue
- Dificuldade de fiscalização: pressão, documentos, certeza jurídica
- Diferença entre reforma e construção nova

DILEMAS:
- Proprietário idoso, família tradicional
- Documentos aparentemente legítimos
- Risco de sanção se multa for incorreta
- Pressão de vizinhos ricos

FORMATO JSON:
{
  "scene": "Descrição (2 parágrafos)",
  "options": ["Opção 1", "Opção 2", "Opção 3"],
  "clue": "Pista ou null",
  "danger": "baixo|médio|alto|crítico",
  "phase": "fase"
}

Tom: Realista, dilema moral, educativo. JSON válido apenas.`,
		OpeningPrompt: `ABERTURA - "GUARDIÕES DO MANGUE"

Cenário: Costa luxuosa. Mansões com piers sobre mangue. Você é o agente ambiental.

Proprietário idoso, família tradicional. Alega: "Meu avô construiu isso antes da reserva. Tenho documentos."

Mangue = berçário marinho + proteção costeira. Mas... e se ele estiver certo?

[DILEMA] Multa errada = sanção disciplinar. Não multar = crime continua.

Crie cena inicial. 3 opções. JSON apenas.`,
		PhaseOrder: []string{"chegada", "dialogo", "documentacao", "evidencias", "desfecho"},
		Phases: map[string]Phase{
			"chegada": {
				Number:     1,
				Title:      "A Costa Dourada",
				KeyClues:   []string{"Pier sobre mangue", "Documentos de herança", "Área de preservação"},
				Atmosphere: "Tensão inicial, dilema ético",
			},
			"dialogo": {
				Number:     2,
				Title:      "O Proprietário",
				KeyClues:   []string{"Família antiga", "Reforma vs construção", "Casa de palha original"},
				Atmosphere: "Negociação difícil, argumentos",
			},
			"documentacao": {
				Number:     3,
				Title:      "Análise dos Documentos",
				KeyClues:   []string{"Escritura suspeita", "Data da reserva", "Datas inconsistentes"},
				Atmosphere: "Investigação técnica, dúvida",
			},
			"evidencias": {
				Number:     4,
				Title:      "A Verdade Oculta",
				KeyClues:   []string{"Documentos falsificados", "Área suprimida recentemente", "Provas fotográficas"},
				Atmosphere: "Revelação, confronto",
			},
			"desfecho": {
				Number:     5,
				Title:      "Decisão Final",
				KeyClues:   []string{"Multa aplicada", "Ordem de retirada", "Recuperação do mangue"},
				Atmosphere: "Justiça vs pressão social",
			},
		},
		InitialDanger: 30,
		Fallback: Fallback{
			Scene:   "O mangue aguarda. Decisões difíceis pela frente.",
			Options: []string{"Investigar mais", "Confrontar proprietário", "Buscar provas"},
		},
	}
}

func mar() Scenario {
	return Scenario{
		ID:          "mar",
		Title:       "Redes da Sobrevivência",
		Description: "Pesca ilegal vs subsistência",
		Icon:        "🐟",
		Operation:   "REDES DA SOBREVIVÊNCIA",
		SystemPrompt: `Você é narrador de crime ambiental sobre PESCA ILEGAL.

CONTEXTO: Agente fiscaliza denúncia de pesca industrial em área reservada para pescadores artesanais. Um barco de arrasto de grande porte está operando na área, ameaçando a subsistência da comunidade local e o ecossistema.

ENREDO: Recebe denúncia → Confronta o capitão do barco industrial → Inspeciona o barco e encontra irregularidades (espécies ameaçadas, redes ilegais) → Conversa com a comunidade local → Decide sobre a apreensão do barco e multa.

TEMAS EDUCATIVOS:
- Lei 9.605/98 (Crimes Ambientais) e Lei 11.959/09 (Política Nacional de Pesca).
- Impacto da pesca de arrasto no leito marinho.
- Diferença entre pesca industrial e artesanal/subsistência.
- Importância das áreas de exclusão para a recuperação de espécies.

DILEMAS:
- Pressão econômica da indústria pesqueira.
- Risco de conflito direto com a tripulação do barco.
- A necessidade de provas concretas para justificar uma apreensão cara.

FORMATO JSON:
{
  "scene": "Descrição visual e tensa (2 parágrafos)",
  "options": ["Opção 1", "Opção 2", "Opção 3"],
  "clue": "Pista ou null",
  "danger": "baixo|médio|alto|crítico",
  "phase": "fase atual"
}

Tom: Documental, tenso, focado no impacto humano e ambiental. JSON válido apenas.`,
		OpeningPrompt: `ABERTURA - "REDES DA SOBREVIVÊNCIA"

Cenário: Lancha de fiscalização, mar agitado. No horizonte, um barco industrial gigante opera onde apenas pequenos barcos de pesca artesanal deveriam estar. O rádio chia com a voz desesperada do líder da comunidade local.

[DILEMA] A indústria pesqueira é poderosa. Uma abordagem errada pode custar seu emprego. Não fazer nada condena uma comunidade inteira à fome.

Crie a cena inicial. 3 opções de ação. JSON apenas.`,
		PhaseOrder: []string{"denuncia", "confronto_inicial", "inspecao", "comunidade", "decisao"},
		Phases: map[string]Phase{
			"denuncia": {
				Number:     1,
				Title:      "O Grito do Oceano",
				KeyClues:   []string{"Barco industrial em área artesanal", "Redes de arrasto", "Comunidade local tensa"},
				Atmosphere: "Conflito social, urgência",
			},
			"confronto_inicial": {
				Number:     2,
				Title:      "Capitão do Aço",
				KeyClues:   []string{"Licença de pesca questionável", "Argumento de 'eficiência'", "Desprezo pela pesca local"},
				Atmosphere: "Tensão, arrogância",
			},
			"inspecao": {
				Number:     3,
				Title:      "Porões da Ganância",
				KeyClues:   []string{"Espécies ameaçadas capturadas", "Redes com malha ilegal", "GPS adulterado"},
				Atmosphere: "Descoberta chocante, evidência",
			},
			"comunidade": {
				Number:     4,
				Title:      "Vozes da Tradição",
				KeyClues:   []string{"Relatos de intimidação", "Queda drástica na pesca", "Dependência do ecossistema"},
				Atmosphere: "Empatia, drama humano",
			},
			"decisao": {
				Number:     5,
				Title:      "A Balança da Justiça",
				KeyClues:   []string{"Apreensão do barco", "Multa milionária", "Proteção da área"},
				Atmosphere: "Clímax, decisão de alto impacto",
			},
		},
		InitialDanger: 40,
		Fallback: Fallback{
			Scene:   "O oceano ruge. Uma decisão precisa ser tomada.",
			Options: []string{"Abordar o barco", "Observar à distância", "Contatar a base"},
		},
	}
}
