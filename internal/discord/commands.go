package discord

import "github.com/bwmarrin/discordgo"

// Command and component identifiers. The Spanish names are the bot's public
// surface and are kept stable; renaming one orphans it in every guild until
// commands re-register.
const (
	cmdRegistro   = "registro"
	cmdSplit      = "split"
	cmdPagar      = "pagar"
	cmdPerfil     = "perfil"
	cmdHistorial  = "historial"
	cmdExportar   = "exportar"
	cmdImportar   = "importar"
	cmdConfigLogs = "config-logs"

	btnJoinSplit   = "join_split"
	btnFinishModal = "finish_modal"
	modalFinalize  = "modal_finalizar"
	inputConcept   = "concepto"

	prefixAdd    = "!add "
	prefixRemove = "!remove "
)

var adminOnly int64 = discordgo.PermissionAdministrator

// commands is the slash-command surface registered on startup.
var commands = []*discordgo.ApplicationCommand{
	{
		Name:        cmdRegistro,
		Description: "Regístrate con tu nombre de Albion Online",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "nombre",
				Description: "Tu nombre exacto in-game",
				Required:    true,
			},
		},
	},
	{
		Name:        cmdSplit,
		Description: "Inicia un reparto de botín con evidencia fotográfica",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "monto",
				Description: "Total a repartir",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Name:        "foto",
				Description: "Captura de pantalla de los jugadores",
				Required:    true,
			},
		},
	},
	{
		Name:                     cmdPagar,
		Description:              "Descuenta saldo a un jugador cuando le entregas las monedas físicamente",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "usuario",
				Description: "El usuario al que le pagaste",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "monto",
				Description: "Cantidad de monedas entregadas",
				Required:    true,
			},
		},
	},
	{
		Name:        cmdPerfil,
		Description: "Mira tu saldo acumulado y nombre registrado",
	},
	{
		Name:        cmdHistorial,
		Description: "Mira tus últimos movimientos de saldo",
	},
	{
		Name:                     cmdExportar,
		Description:              "Exporta la lista de balances a un archivo Excel",
		DefaultMemberPermissions: &adminOnly,
	},
	{
		Name:                     cmdImportar,
		Description:              "Importa un Excel para actualizar balances masivamente",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Name:        "archivo",
				Description: "El archivo Excel modificado",
				Required:    true,
			},
		},
	},
	{
		Name:                     cmdConfigLogs,
		Description:              "Configura el canal para el historial de transacciones",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "canal",
				Description: "Canal de texto para los logs",
				Required:    true,
			},
		},
	},
}
