package i18n

var ptBRCatalog = &Catalog{
	locale: "pt-BR",
	messages: map[Code]string{
		CodeUnknown:         "Algo deu errado",
		CodeInvalidArgument: "A solicitação é inválida",

		CodeNotFound:      "O recurso solicitado não foi encontrado",
		CodeAlreadyExists: "O recurso já existe",

		// Spawn errors
		CodeSpawnAlreadyPending: "Já existe um spawn aguardando neste canal",
		CodeAlreadyClaimed:      "Tarde demais! Outra pessoa pegou primeiro",
		CodeSpawnExpired:        "O spawn escapou antes que alguém o pegasse",

		// Ledger errors
		CodeInsufficientFunds:     "Moedas insuficientes: tem {{.Balance}}, precisa de {{.Required}}",
		CodeInsufficientInventory: "Cópias insuficientes de {{.Item}}: tem {{.Have}}, precisa de {{.Need}}",

		// Cooldown errors
		CodeCooldownActive: "Aguarde {{.Remaining}} antes de tentar novamente",

		// Trade errors
		CodeTradeAlreadyActive: "Já existe uma troca ativa para {{.Actor}}",
		CodeInvalidTradeState:  "A troca está {{.State}} e não permite {{.Operation}}",
		CodeStaleOffer:         "Itens ofertados não estão mais disponíveis: {{.Items}}",

		CodeInternal: "Algo deu errado do nosso lado",
	},
}
