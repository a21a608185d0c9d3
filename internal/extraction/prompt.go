package extraction

import "strings"

const basePrompt = `Tu analyses une fiche de métrage de menuiseries (fenêtres, portes, coulissants).
Réponds uniquement avec un objet JSON, sans texte autour, au format :
{
  "documentType": "fiche_metrage" ou "autre",
  "confidence": nombre entre 0 et 1,
  "projet": {
    "reference": "...", "adresse": "...", "referenceClient": "...",
    "client": {"nom": "...", "email": "...", "telephone": "..."}
  },
  "menuiseries": [
    {
      "repere": "...",
      "intitule": "ex. Fenêtre 2 vantaux",
      "donnees": {
        "largeur": nombre en mm, "hauteur": nombre en mm, "hauteurAllege": nombre en mm,
        "gamme": "...", "materiau": "...", "couleurInterieure": "...", "couleurExterieure": "...",
        "vitrage": "...", "typePose": "...", "sensOuverture": "droite tirant" ou "gauche tirant",
        "habillageIntHaut": "...", "habillageIntBas": "...", "habillageIntGauche": "...", "habillageIntDroite": "...",
        "habillageExtHaut": "...", "habillageExtBas": "...", "habillageExtGauche": "...", "habillageExtDroite": "...",
        "volet": "...", "observations": "..."
      }
    }
  ]
}
Omets les champs absents du document. Ne devine pas les cotes illisibles.`

func buildPrompt(textHint string) string {
	textHint = strings.TrimSpace(textHint)
	if textHint == "" {
		return basePrompt
	}
	if len(textHint) > maxHintBytes {
		textHint = textHint[:maxHintBytes]
	}
	return basePrompt + "\n\nTexte extrait automatiquement du PDF (peut être incomplet) :\n" + textHint
}

const maxHintBytes = 16 << 10
