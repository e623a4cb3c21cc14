package conversation

import "fmt"

// User-facing texts. All copy is WhatsApp-formatted Brazilian Portuguese.

func welcomeMessage(name string) string {
	greeting := "Olá"
	if name != "" {
		greeting = "Olá " + name
	}
	return greeting + `! 👋

Bem-vindo(a) à *OniSaúde*!

Sou seu assistente virtual e estou aqui para ajudá-lo(a) a:

✅ Agendar consultas
✅ Agendar teleconsultas
✅ Solicitar exames

Como posso ajudá-lo(a) hoje?`
}

const msgProcessingError = `Desculpe, ocorreu um erro ao processar sua solicitação. 😔

Por favor, tente novamente em alguns instantes ou entre em contato com nosso suporte.`

const msgNotUnderstood = "Desculpe, não entendi o que você precisa. Pode reformular?"

const msgProviderListMissing = "Desculpe, não encontrei a lista de profissionais. Por favor, busque novamente."

func invalidProviderNumber(count int) string {
	return fmt.Sprintf("Número inválido. Por favor, escolha entre 1 e %d.", count)
}

const msgSlotsMissing = "Não encontrei vagas disponíveis. Por favor, busque novamente."

const msgDateNotFound = "Data não encontrada. Por favor, escolha uma data válida da lista."

func invalidSlotNumber(count int) string {
	return fmt.Sprintf("Horário não encontrado. Por favor, escolha entre 1 e %d.", count)
}

func slotSelectedNeedLogin(dataHora string) string {
	return fmt.Sprintf(`✅ Horário selecionado: %s

Agora preciso que você faça login para confirmar o agendamento. Por favor, informe seu CPF ou email e sua senha. 🔐`, dataHora)
}

const msgBadCredentials = "CPF/email ou senha incorretos. Por favor, tente novamente."

const msgTokenInfoError = "Erro ao buscar informações do paciente. Tente novamente."

const msgLoginError = "Erro ao fazer login. Verifique seus dados e tente novamente."

func termsRequired(name string) string {
	return fmt.Sprintf(`⚠️ Olá %s!

Você precisa aceitar os termos de uso antes de continuar. Por favor, acesse o portal da OniSaúde para aceitar os termos obrigatórios.`, name)
}

func loginSuccess(name string) string {
	return fmt.Sprintf(`✅ Login realizado com sucesso!

Olá %s! Agora podemos continuar com seu agendamento. 📅`, name)
}

const msgLoginRequiredBooking = "❌ Você precisa fazer login antes de agendar. Por favor, faça login primeiro."

const msgLoginRequiredDependents = "❌ Você precisa fazer login antes de buscar dependentes. Por favor, faça login primeiro."

const msgLoginRequiredOrder = "❌ Você precisa fazer login antes de criar o pedido. Por favor, faça login primeiro."

const msgBookingValidated = "✅ Agendamento validado! Confirme para finalizar."

func bookingInvalid(reason string) string {
	if reason == "" {
		reason = "Não foi possível validar o agendamento."
	}
	return fmt.Sprintf("❌ %s\n\nPor favor, escolha outro horário.", reason)
}

const msgValidateError = "Erro ao validar agendamento. Tente novamente."

const msgConfirmError = "Erro ao confirmar agendamento. Tente novamente."

func bookingConfirmed(data, horario, profissional, unidade, valor string) string {
	return fmt.Sprintf(`🎉 *Agendamento confirmado com sucesso!*

📅 *Data:* %s
🕐 *Horário:* %s
👨‍⚕️ *Profissional:* %s
🏥 *Local:* %s
💰 *Valor:* R$ %s

⚠️ *Importante:* As instruções de pagamento serão enviadas em breve.

Obrigado por escolher a OniSaúde! 💙`, data, horario, profissional, unidade, valor)
}

const msgCartEmpty = "Seu carrinho está vazio. Adicione exames antes de finalizar."

const msgOrderError = "Erro ao criar pedido. Tente novamente."

func orderCreated(examLines, total string) string {
	return fmt.Sprintf(`🎉 *Pedido de exames criado com sucesso!*

📋 *Exames solicitados:*
%s

💰 *Valor total:* R$ %s

⚠️ *Importante:* As instruções de pagamento serão enviadas em breve.

Obrigado por escolher a OniSaúde! 💙`, examLines, total)
}

const msgInvalidCPF = "CPF inválido. Por favor, verifique e tente novamente."

const msgInvalidEmail = "Email inválido. Por favor, verifique e tente novamente."

const msgRegisterError = "Erro ao cadastrar. Verifique seus dados e tente novamente."

func registerSuccess(loginMessage string) string {
	return fmt.Sprintf(`✅ *Cadastro realizado com sucesso!*

%s

Agora você já pode utilizar todos os nossos serviços! 🎉`, loginMessage)
}
