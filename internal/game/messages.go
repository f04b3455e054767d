package game

import "fmt"

// Player-facing texts. Instagram DMs render plain text only, no Markdown.

const (
	msgMissingUsername = "Necesito tu usuario de Instagram para continuar 😅\n" +
		"Responde con tu @usuario exactamente como aparece en Instagram."
	msgGameNotFound  = "Ese juego no existe o ya no está disponible."
	msgGameInactive  = "Este juego ya no está activo."
	msgAlreadyJoined = "Ya estabas dentro del juego ✅\nSi no has completado el quiz, te lo vuelvo a enviar ahora."
	msgLimitReached  = "Este juego ha alcanzado el límite de jugadores 😅\n" +
		"Pide al organizador que amplíe el límite (plan 24h) o cree otra partida."

	msgQuizIntro          = "Antes de jugar, tienes que responder unas preguntas...\n"
	msgQuizGameMissing    = "Esa partida no existe. 🙈"
	msgQuizClosed         = "Cuestionario cerrado. Gracias igualmente 🙌"
	msgQuizCodeMissing    = "He tenido un problema generando tu código. Escribe 'AYUDA' y te lo soluciono."
	msgQuizPlayerNotFound = "No he encontrado tu participación en la partida. ¿Has usado el código correcto?"

	msgPairValidated = "🎉 ¡Pareja correcta! Si tenéis quiz activo, os llegará ahora. 🎁"
)

func msgCodeTail(code int) string {
	return fmt.Sprintf("🎟️ Tu código para jugar es: %d\n\nVe a la pantalla, introdúcelo y ¡a jugar! 🚀", code)
}

func msgRaffleDrums(label string) string {
	return fmt.Sprintf("🥁🥁🥁 ¡Atención! Vamos a hacer ahora el sorteo de %s…", label)
}

var raffleCountdown = []string{"3️⃣...", "2️⃣...", "1️⃣..."}

func msgRaffleAnnounce(label string, winners []string) string {
	out := fmt.Sprintf("🎉 ¡Ya tenemos personas ganadoras del sorteo de %s!\nGanadores: ", label)
	for i, w := range winners {
		if i > 0 {
			out += ", "
		}
		out += w
	}
	return out
}

func msgRafflePrize(gameType string, code int) string {
	if code > 0 {
		return fmt.Sprintf("🎁 ¡Enhorabuena! Te ha tocado premio en el sorteo de %s.\n"+
			"Tu código de validación es: %d.\n"+
			"Pasa por el stand para recoger tu premio. 🎉", gameType, code)
	}
	return fmt.Sprintf("🎁 ¡Enhorabuena! Te ha tocado premio en el sorteo de %s.\n"+
		"Pasa por el stand para recoger tu premio. 🎉", gameType)
}
